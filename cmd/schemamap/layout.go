package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"schemamap/internal/ecschema"
	"schemamap/internal/layout"
)

var className string

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Print the stored layout, or how one class is mapped",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore(s)

		l, err := s.LoadLayout(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()

		if className == "" {
			data, err := layout.Encode(l)
			if err != nil {
				return err
			}

			_, err = out.Write(data)

			return err
		}

		cm := l.ClassMap(ecschema.ParseClassID(className))
		if cm == nil {
			return fmt.Errorf("class %s is not in the stored layout", className)
		}

		return yaml.NewEncoder(out).Encode(cm)
	},
}

func init() {
	layoutCmd.Flags().StringVar(&className, "class", "", "show the mapping of one class, as Schema:Class")
}
