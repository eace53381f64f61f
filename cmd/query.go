package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/scalpel-graph/api/schemas"
)

// traversalFlags binds the TraversalParams flags shared by traverse and compare.
func traversalFlags(cmd *cobra.Command, params *schemas.TraversalParams, direction *string) {
	cmd.Flags().IntVar(&params.MaxDepth, "depth", 1, "maximum number of hops")
	cmd.Flags().StringVarP(direction, "direction", "d", string(schemas.DirectionOutgoing), "OUTGOING, INCOMING or BOTH")
	cmd.Flags().StringSliceVarP(&params.EdgeTypes, "edge-type", "t", nil, "relationship type to follow, repeatable")
	cmd.Flags().StringSliceVarP(&params.NodeLabels, "label", "l", nil, "only return nodes with one of these labels, repeatable")
	cmd.Flags().IntVar(&params.Limit, "limit", 0, "maximum number of nodes to return (0 for no limit)")
}

func newTraverseCmd(opts *rootOptions) *cobra.Command {
	var (
		params    schemas.TraversalParams
		direction string
	)
	cmd := &cobra.Command{
		Use:   "traverse <start-id>",
		Short: "List the nodes reachable from a start node, nearest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params.Direction = schemas.Direction(direction)

			backend, cleanup, err := openBackend(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			nodes, err := backend.Traverse(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.output, nodes)
		},
	}
	traversalFlags(cmd, &params, &direction)
	return cmd
}

func newPathCmd(opts *rootOptions) *cobra.Command {
	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Find directed paths between two nodes",
	}
	pathCmd.AddCommand(newShortestPathCmd(opts))
	pathCmd.AddCommand(newAllPathsCmd(opts))
	return pathCmd
}

func newShortestPathCmd(opts *rootOptions) *cobra.Command {
	var maxDepth int
	cmd := &cobra.Command{
		Use:   "shortest <from-id> <to-id>",
		Short: "Print the path with the fewest edges, or null when none exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, cleanup, err := openBackend(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			path, err := backend.FindShortestPath(cmd.Context(), args[0], args[1], maxDepth)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.output, path)
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", 5, "maximum number of edges in the path")
	return cmd
}

func newAllPathsCmd(opts *rootOptions) *cobra.Command {
	var maxDepth, limit int
	cmd := &cobra.Command{
		Use:   "all <from-id> <to-id>",
		Short: "Print simple paths ordered by length",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, cleanup, err := openBackend(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			paths, err := backend.FindAllPaths(cmd.Context(), args[0], args[1], maxDepth, limit)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.output, paths)
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", 5, "maximum number of edges per path")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of paths (0 for no limit)")
	return cmd
}
