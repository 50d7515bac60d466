// Package web holds the browser UI served by the API process.
package web

import "embed"

// Pages contains the page HTML at the root and assets under static/.
//
//go:embed *.html static
var Pages embed.FS
