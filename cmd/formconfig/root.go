package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/config"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/definition"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath     string
	definitionDirs []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "formconfig",
		Short: "Form field configuration service",
		Long: `formconfig manages the configuration layer of a form builder.
It serves lifecycle transition rules, field compatibility checks and workflow
validation over HTTP, and can validate or graph definitions offline.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to configuration file")
	cmd.PersistentFlags().StringSliceVarP(&opts.definitionDirs, "definitions", "d", nil, "definition directories (overrides configuration)")

	cmd.AddCommand(
		newServeCmd(opts),
		newValidateCmd(opts),
		newGraphCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads the configuration file and applies the directory flag.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if len(o.definitionDirs) > 0 {
		cfg.Definitions.Directories = o.definitionDirs
	}
	return cfg, nil
}

// loadDefinitions parses and validates every definition file in dirs.
func loadDefinitions(dirs []string) ([]model.DefinitionFile, []definition.VError, error) {
	defs, err := definition.NewLoader().LoadAll(dirs)
	if err != nil {
		return nil, nil, err
	}
	return defs, definition.NewValidator().Validate(defs), nil
}

// logValidation reports definition errors and whether loading may proceed.
func logValidation(logger *zap.Logger, verrs []definition.VError, strict bool) bool {
	for _, ve := range verrs {
		if strict {
			logger.Error("definition validation error", zap.String("path", ve.Path), zap.String("code", ve.Code), zap.String("error", ve.Message))
		} else {
			logger.Warn("definition validation error", zap.String("path", ve.Path), zap.String("code", ve.Code), zap.String("error", ve.Message))
		}
	}
	return len(verrs) == 0 || !strict
}
