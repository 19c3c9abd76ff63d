// Package web holds the single-page task console served by agentdeskd.
package web

import (
	"embed"
	"io/fs"
)

//go:embed index.html app.js styles.css
var content embed.FS

// Files returns the embedded page and its assets.
func Files() fs.FS {
	return content
}
