// Package migrations embeds the numbered SQL files applied by
// "careboard-server migrate up".
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
