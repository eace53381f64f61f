package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/scalpel-graph/api/schemas"
)

func newNodeCmd(opts *rootOptions) *cobra.Command {
	nodeCmd := &cobra.Command{
		Use:   "node",
		Short: "Create, read, update and delete nodes",
	}
	nodeCmd.AddCommand(newNodeCreateCmd(opts))
	nodeCmd.AddCommand(newNodeGetCmd(opts))
	nodeCmd.AddCommand(newNodeUpdateCmd(opts))
	nodeCmd.AddCommand(newNodeDeleteCmd(opts))
	nodeCmd.AddCommand(newNodeEdgesCmd(opts))
	return nodeCmd
}

// parseProps decodes the JSON object given to --props.
func parseProps(raw string) (schemas.Properties, error) {
	if raw == "" {
		return nil, nil
	}
	props, err := schemas.DecodeProperties([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid --props: %w", err)
	}
	return props, nil
}

func newNodeCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		id     string
		labels []string
		props  string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			properties, err := parseProps(props)
			if err != nil {
				return err
			}
			backend, cleanup, err := openBackend(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			node, err := backend.CreateNode(cmd.Context(), schemas.NodeInput{ID: id, Labels: labels, Properties: properties})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.output, node)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "node id (generated when empty)")
	cmd.Flags().StringSliceVarP(&labels, "label", "l", nil, "node label, repeatable (defaults to "+schemas.DefaultNodeLabel+")")
	cmd.Flags().StringVarP(&props, "props", "p", "", "properties as a JSON object")
	return cmd
}

func newNodeGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a live node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, cleanup, err := openBackend(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			node, err := backend.GetNode(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if node == nil {
				return &schemas.NodeNotFoundError{ID: args[0]}
			}
			return printResult(cmd.OutOrStdout(), opts.output, node)
		},
	}
}

func newNodeUpdateCmd(opts *rootOptions) *cobra.Command {
	var (
		labels []string
		props  string
		remove []string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Merge properties into a node and optionally replace its labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			properties, err := parseProps(props)
			if err != nil {
				return err
			}
			update := schemas.NodeUpdate{Properties: properties, RemoveKeys: remove}
			if cmd.Flags().Changed("label") {
				update.Labels = labels
			}

			backend, cleanup, err := openBackend(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			node, err := backend.UpdateNode(cmd.Context(), args[0], update)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.output, node)
		},
	}
	cmd.Flags().StringSliceVarP(&labels, "label", "l", nil, "replacement label set, repeatable")
	cmd.Flags().StringVarP(&props, "props", "p", "", "properties to merge, as a JSON object")
	cmd.Flags().StringSliceVar(&remove, "remove", nil, "property key to drop, repeatable")
	return cmd
}

func newNodeDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete a node and its incident edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, cleanup, err := openBackend(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := backend.DeleteNode(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.output, map[string]string{"deleted": args[0]})
		},
	}
}

func newNodeEdgesCmd(opts *rootOptions) *cobra.Command {
	var direction string
	cmd := &cobra.Command{
		Use:   "edges <id>",
		Short: "List the live edges incident to a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, cleanup, err := openBackend(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			edges, err := backend.GetNodeEdges(cmd.Context(), args[0], schemas.Direction(direction))
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.output, edges)
		},
	}
	cmd.Flags().StringVarP(&direction, "direction", "d", string(schemas.DirectionBoth), "OUTGOING, INCOMING or BOTH")
	return cmd
}
