// Package main provides the schemamap command.
//
// schemamap maps EC schemas onto relational tables:
//   - plan: show the DDL an import would run, without touching the database
//   - import: apply the import and record the resulting layout
//   - layout: print the stored layout or how one class is mapped
//   - check-ddl: parse a MySQL script with the MySQL grammar
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
