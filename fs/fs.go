// Package appfs exposes embedded application assets (database migrations).
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
