package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/scalpel-graph/api/schemas"
)

func newEdgeCmd(opts *rootOptions) *cobra.Command {
	edgeCmd := &cobra.Command{
		Use:   "edge",
		Short: "Create, read and delete edges",
	}
	edgeCmd.AddCommand(newEdgeCreateCmd(opts))
	edgeCmd.AddCommand(newEdgeGetCmd(opts))
	edgeCmd.AddCommand(newEdgeDeleteCmd(opts))
	return edgeCmd
}

func newEdgeCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		input      schemas.EdgeInput
		props      string
		weight     float64
		confidence float64
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a directed edge between two live nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			properties, err := parseProps(props)
			if err != nil {
				return err
			}
			input.Properties = properties
			if cmd.Flags().Changed("weight") {
				input.Weight = &weight
			}
			if cmd.Flags().Changed("confidence") {
				input.Confidence = &confidence
			}

			backend, cleanup, err := openBackend(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			edge, err := backend.CreateEdge(cmd.Context(), input)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.output, edge)
		},
	}
	cmd.Flags().StringVar(&input.ID, "id", "", "edge id (generated when empty)")
	cmd.Flags().StringVar(&input.SourceID, "from", "", "source node id")
	cmd.Flags().StringVar(&input.TargetID, "to", "", "target node id")
	cmd.Flags().StringVarP(&input.EdgeType, "type", "t", "", "relationship type")
	cmd.Flags().StringVarP(&props, "props", "p", "", "properties as a JSON object")
	cmd.Flags().Float64Var(&weight, "weight", 0, "optional edge weight")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "optional confidence score")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newEdgeGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a live edge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, cleanup, err := openBackend(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			edge, err := backend.GetEdge(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if edge == nil {
				return &schemas.EdgeNotFoundError{ID: args[0]}
			}
			return printResult(cmd.OutOrStdout(), opts.output, edge)
		},
	}
}

func newEdgeDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete an edge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, cleanup, err := openBackend(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := backend.DeleteEdge(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.output, map[string]string{"deleted": args[0]})
		},
	}
}
