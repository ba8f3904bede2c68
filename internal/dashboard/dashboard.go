// Package dashboard embeds the HTML templates and styles served under
// /dashboard.
package dashboard

import "embed"

//go:embed templates/*.html
var Templates embed.FS

//go:embed assets/*
var Assets embed.FS
