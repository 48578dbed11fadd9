// Package static embeds the dashboard assets into the binary so the
// server ships as a single file.
package static

import (
	"embed"
	"io/fs"
)

//go:embed index.html css js
var assets embed.FS

// FS returns the embedded asset filesystem.
func FS() fs.FS {
	return assets
}

// ReadFile reads one embedded file.
func ReadFile(name string) ([]byte, error) {
	return assets.ReadFile(name)
}
