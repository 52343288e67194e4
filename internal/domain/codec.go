package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// DecodeSnippet parses one snippet from JSON.
// It fails with KindInvalidEncoding on invalid UTF-8 and with KindDecodeError
// on malformed JSON, trailing data, a wrong shape or a missing name.
func DecodeSnippet(data []byte) (Snippet, error) {
	const op = "decode snippet"
	if !utf8.Valid(data) {
		return Snippet{}, Errorf(KindInvalidEncoding, op, "input is not valid UTF-8")
	}
	var s Snippet
	if err := decodeStrict(data, &s); err != nil {
		return Snippet{}, Wrap(KindDecodeError, op, "", err)
	}
	if err := validate.Struct(s); err != nil {
		return Snippet{}, Wrap(KindDecodeError, op, "", err)
	}
	return s, nil
}

// DecodeSnippets parses a JSON array of snippets. The literal null is rejected.
func DecodeSnippets(data []byte) ([]Snippet, error) {
	const op = "decode snippets"
	if !utf8.Valid(data) {
		return nil, Errorf(KindInvalidEncoding, op, "input is not valid UTF-8")
	}
	var items []Snippet
	if err := decodeStrict(data, &items); err != nil {
		return nil, Wrap(KindDecodeError, op, "", err)
	}
	if items == nil {
		return nil, Errorf(KindDecodeError, op, "expected a JSON array")
	}
	for i := range items {
		if err := validate.Struct(items[i]); err != nil {
			return nil, Wrap(KindDecodeError, op, "", fmt.Errorf("item %d: %w", i, err))
		}
	}
	return items, nil
}

// EncodeSnippet renders a snippet as compact JSON.
func EncodeSnippet(s Snippet) ([]byte, error) {
	return encode(s, false)
}

// EncodeSnippets renders snippets as a JSON array; nil encodes as [].
func EncodeSnippets(items []Snippet, pretty bool) ([]byte, error) {
	if items == nil {
		items = []Snippet{}
	}
	return encode(items, pretty)
}

// ValidateSnippet applies the storage rules to a snippet built in memory.
func ValidateSnippet(s Snippet) error {
	if err := validate.Struct(s); err != nil {
		return Wrap(KindValidation, "validate", s.Name, err)
	}
	return nil
}

// ValidateBatch checks every snippet and rejects duplicate names.
func ValidateBatch(items []Snippet) error {
	seen := make(map[string]int, len(items))
	for i, s := range items {
		if err := validate.Struct(s); err != nil {
			return Wrap(KindValidation, "validate batch", s.Name, fmt.Errorf("item %d: %w", i, err))
		}
		if j, dup := seen[s.Name]; dup {
			return Wrap(KindValidation, "validate batch", s.Name, fmt.Errorf("items %d and %d share a name", j, i))
		}
		seen[s.Name] = i
	}
	return nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty input")
		}
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// encode keeps <, > and & literal since content is usually source code.
func encode(v any, pretty bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
