// assets/embed.go
//
// Files compiled into the binary:
//   - puzzles.json: the default puzzle catalogue.
//   - sql/*.sql:    schema migrations, applied in lexical order.

package assets

import (
	"embed"
	"io/fs"
)

//go:embed puzzles.json sql/*.sql
var FS embed.FS

// Puzzles returns the raw embedded catalogue.
func Puzzles() ([]byte, error) {
	return FS.ReadFile("puzzles.json")
}

// Migrations returns the migration directory rooted at "sql".
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "sql")
	if err != nil {
		// "sql" is a literal embedded directory; Sub only fails on a bad name.
		panic(err)
	}
	return sub
}
