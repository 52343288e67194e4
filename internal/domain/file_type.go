package domain

import "strings"

// FileType is the language label of a snippet, e.g. "go" or "rust".
// Unrecognised labels are kept as-is; they only lose their file extension.
type FileType string

const (
	FileTypeRust       FileType = "rust"
	FileTypeC          FileType = "c"
	FileTypeCpp        FileType = "cpp"
	FileTypeCSharp     FileType = "csharp"
	FileTypeJava       FileType = "java"
	FileTypePython     FileType = "python"
	FileTypeJavaScript FileType = "javascript"
	FileTypeTypeScript FileType = "typescript"
	FileTypeGo         FileType = "go"
	FileTypeRuby       FileType = "ruby"
	FileTypePHP        FileType = "php"
	FileTypeSwift      FileType = "swift"
	FileTypeKotlin     FileType = "kotlin"
	FileTypeLua        FileType = "lua"
	FileTypeShell      FileType = "shell"
	FileTypeBash       FileType = "bash"
	FileTypeHTML       FileType = "html"
	FileTypeCSS        FileType = "css"
	FileTypeJSON       FileType = "json"
	FileTypeYAML       FileType = "yaml"
	FileTypeTOML       FileType = "toml"
	FileTypeMarkdown   FileType = "markdown"
	FileTypeSQL        FileType = "sql"
	FileTypeDockerfile FileType = "dockerfile"
	FileTypeMakefile   FileType = "makefile"
	FileTypeText       FileType = "text"
)

var extensions = map[FileType]string{
	FileTypeRust:       "rs",
	FileTypeC:          "c",
	FileTypeCpp:        "cpp",
	FileTypeCSharp:     "cs",
	FileTypeJava:       "java",
	FileTypePython:     "py",
	FileTypeJavaScript: "js",
	FileTypeTypeScript: "ts",
	FileTypeGo:         "go",
	FileTypeRuby:       "rb",
	FileTypePHP:        "php",
	FileTypeSwift:      "swift",
	FileTypeKotlin:     "kt",
	FileTypeLua:        "lua",
	FileTypeShell:      "sh",
	FileTypeBash:       "bash",
	FileTypeHTML:       "html",
	FileTypeCSS:        "css",
	FileTypeJSON:       "json",
	FileTypeYAML:       "yaml",
	FileTypeTOML:       "toml",
	FileTypeMarkdown:   "md",
	FileTypeSQL:        "sql",
	FileTypeDockerfile: "dockerfile",
	FileTypeMakefile:   "makefile",
	FileTypeText:       "txt",
}

// Extension returns the file extension used to store content of this type.
// Unknown and empty types map to "txt".
func (f FileType) Extension() string {
	if ext, ok := extensions[FileType(strings.ToLower(string(f)))]; ok {
		return ext
	}
	return "txt"
}

// FileTypeFromExtension guesses the type from an extension, with or without
// the leading dot. It returns FileTypeText when nothing matches.
func FileTypeFromExtension(ext string) FileType {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch ext {
	case "yml":
		return FileTypeYAML
	case "text", "plain":
		return FileTypeText
	}
	for ft, e := range extensions {
		if e == ext {
			return ft
		}
	}
	return FileTypeText
}
