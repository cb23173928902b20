package constants

import "strings"

// AllowedExtensions holds the file extensions the loader accepts.
// Only PDFs carry a text layer we can extract.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// File size bounds enforced by the document loader.
const (
	MaxFileBytesDefault = 50 * 1024 * 1024 // 50 MiB
	MinFileBytes        = 100              // anything smaller cannot be a real PDF
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether the (possibly dotted) extension is supported.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
