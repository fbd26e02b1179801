package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir...]",
		Short: "Validate form and workflow definitions",
		Long:  "Loads every YAML definition file and reports structural, reference and workflow errors.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs := args
			if len(dirs) == 0 {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				dirs = cfg.Definitions.Directories
			}

			defs, verrs, err := loadDefinitions(dirs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, ve := range verrs {
				fmt.Fprintf(out, "%s [%s] %s\n", ve.Path, ve.Code, ve.Message)
			}
			if len(verrs) > 0 {
				return fmt.Errorf("%d validation error(s) in %d file(s)", len(verrs), len(defs))
			}
			fmt.Fprintf(out, "%d file(s) valid\n", len(defs))
			return nil
		},
	}
}
