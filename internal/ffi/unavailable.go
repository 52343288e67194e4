package ffi

import (
	"context"
	"errors"

	"github.com/roguepikachu/nibb/internal/domain"
)

// Unavailable is the Store used when the real one could not be opened.
// Every call fails with a StorageError carrying the startup error.
type Unavailable struct {
	Err error
}

func (u Unavailable) fail(op, name string) error {
	err := u.Err
	if err == nil {
		err = errors.New("store unavailable")
	}
	return domain.Wrap(domain.KindStorage, op, name, err)
}

func (u Unavailable) Get(_ context.Context, name string) (domain.Snippet, error) {
	return domain.Snippet{}, u.fail("get", name)
}

func (u Unavailable) Put(_ context.Context, s domain.Snippet) error { return u.fail("put", s.Name) }

func (u Unavailable) Delete(_ context.Context, name string) error { return u.fail("delete", name) }

func (u Unavailable) List(context.Context) ([]domain.Snippet, error) {
	return nil, u.fail("list", "")
}

func (u Unavailable) ReplaceAll(context.Context, []domain.Snippet) error {
	return u.fail("replace all", "")
}

var _ Store = Unavailable{}
