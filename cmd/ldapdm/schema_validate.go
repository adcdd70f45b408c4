package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dirctl/ldapdm/internal/schema"
)

var schemaValidateCmd = &cobra.Command{
	Use:   "schema-validate <path>...",
	Short: "Load and validate one or more flat schema documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		schemas, err := schema.LoadAll(args)
		if err != nil {
			return err
		}

		for name := range schemas {
			fmt.Printf("ok: %s\n", name)
		}

		return nil
	},
}
