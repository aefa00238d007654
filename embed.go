// Package embedded exposes the dashboard assets compiled into the service binary.
package embedded

import "embed"

// WebFiles contiene el sitio web estático (HTML, CSS, JS)
//
//go:embed internal/assets/web
var WebFiles embed.FS
