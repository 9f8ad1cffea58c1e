package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"schemamap/internal/ddl"
)

var checkDDLCmd = &cobra.Command{
	Use:   "check-ddl <script.sql>",
	Short: "Parse a MySQL DDL script and report the first invalid statement",
	Args:  cobra.ExactArgs(1),
	// check-ddl needs no store or config file.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		stmts, err := ddl.SplitScript(string(data))
		if err != nil {
			return err
		}

		if err := ddl.ValidateMySQL(stmts); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d statements ok\n", len(stmts))

		return nil
	},
}
