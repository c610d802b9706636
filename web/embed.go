package webassets

import "embed"

// FS contains the page shells and the browser auth client.
//
//go:embed index.html login.html app.html auth-client.js
var FS embed.FS
