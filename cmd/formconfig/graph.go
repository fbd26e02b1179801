package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/definition"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/graph"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/lifecycle"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/store"
)

func newGraphCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render Mermaid diagrams of transition rules and workflows",
	}
	cmd.AddCommand(newGraphFieldCmd(opts), newGraphWorkflowCmd(opts))
	return cmd
}

func newGraphFieldCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "field <fieldId>",
		Short: "Render the transition rules of a choice field",
		Long: `Renders the stage graph of a choice field. Rules stored in the configured
store take precedence over the ones in the definition files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			defs, _, err := loadDefinitions(cfg.Definitions.Directories)
			if err != nil {
				return err
			}
			registry := definition.NewRegistry(defs)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			st, err := store.Open(ctx, cfg.Store, zap.NewNop())
			if err != nil {
				return err
			}
			defer st.Close()

			svc := lifecycle.NewService(st, registry, cfg.Lifecycle)
			rs, err := svc.Rules(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rs)
			}
			fmt.Fprint(out, graph.Transitions(rs.Options, rs.Rules, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the rule set as JSON")
	return cmd
}

func newGraphWorkflowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "workflow <workflowId>",
		Short: "Render the node graph of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			defs, _, err := loadDefinitions(cfg.Definitions.Directories)
			if err != nil {
				return err
			}
			wf, ok := definition.NewRegistry(defs).GetWorkflow(args[0])
			if !ok {
				return fmt.Errorf("workflow %q not found", args[0])
			}
			fmt.Fprint(cmd.OutOrStdout(), graph.Workflow(wf))
			return nil
		},
	}
}
