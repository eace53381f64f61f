package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/scalpel-graph/api/schemas"
	"github.com/xkilldash9x/scalpel-graph/internal/equivalence"
	"github.com/xkilldash9x/scalpel-graph/internal/observability"
)

// ErrNotEquivalent is returned when two backends disagree, so the process
// exits non-zero after printing the report.
var ErrNotEquivalent = errors.New("backends returned different answers")

type compareOptions struct {
	left, right string
	ignoreOrder bool
	idsOnly     bool
	strict      bool
}

func newCompareCmd(opts *rootOptions) *cobra.Command {
	copts := &compareOptions{}
	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "Run the same query on two backends and report differences",
	}
	compareCmd.PersistentFlags().StringVar(&copts.left, "left", "postgres", "first backend")
	compareCmd.PersistentFlags().StringVar(&copts.right, "right", "neo4j", "second backend")
	compareCmd.PersistentFlags().BoolVar(&copts.ignoreOrder, "ignore-order", false, "compare results as sets")
	compareCmd.PersistentFlags().BoolVar(&copts.idsOnly, "ids-only", false, "compare ids only, not labels and properties")
	compareCmd.PersistentFlags().BoolVar(&copts.strict, "strict", false, "do not ignore volatile properties such as timestamps")

	compareCmd.AddCommand(newCompareTraverseCmd(opts, copts))
	compareCmd.AddCommand(newCompareShortestCmd(opts, copts))
	compareCmd.AddCommand(newCompareAllCmd(opts, copts))
	return compareCmd
}

// runComparison opens both backends, hands them to run and prints the report.
func runComparison(cmd *cobra.Command, opts *rootOptions, copts *compareOptions,
	run func(c *equivalence.Checker) (*equivalence.Report, error)) error {
	cfg, err := configFrom(cmd)
	if err != nil {
		return err
	}

	leftCfg := cfg.Graph()
	leftCfg.Backend = copts.left
	left, closeLeft, err := openBackendFor(cmd, opts, leftCfg)
	if err != nil {
		return fmt.Errorf("left backend: %w", err)
	}
	defer closeLeft()

	rightCfg := cfg.Graph()
	rightCfg.Backend = copts.right
	right, closeRight, err := openBackendFor(cmd, opts, rightCfg)
	if err != nil {
		return fmt.Errorf("right backend: %w", err)
	}
	defer closeRight()

	checkOpts := equivalence.DefaultOptions()
	checkOpts.IgnoreOrder = copts.ignoreOrder
	checkOpts.CompareContent = !copts.idsOnly
	if copts.strict {
		checkOpts.Rules = equivalence.StrictRules()
	}
	checker := equivalence.NewChecker(left, right, observability.GetLogger(), checkOpts)

	report, err := run(checker)
	if err != nil {
		return err
	}
	if err := printResult(cmd.OutOrStdout(), opts.output, report); err != nil {
		return err
	}
	if !report.Equivalent() {
		return ErrNotEquivalent
	}
	return nil
}

func newCompareTraverseCmd(opts *rootOptions, copts *compareOptions) *cobra.Command {
	var (
		params    schemas.TraversalParams
		direction string
	)
	cmd := &cobra.Command{
		Use:   "traverse <start-id>",
		Short: "Compare traversal results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params.Direction = schemas.Direction(direction)
			return runComparison(cmd, opts, copts, func(c *equivalence.Checker) (*equivalence.Report, error) {
				return c.CompareTraversal(cmd.Context(), args[0], params)
			})
		},
	}
	traversalFlags(cmd, &params, &direction)
	return cmd
}

func newCompareShortestCmd(opts *rootOptions, copts *compareOptions) *cobra.Command {
	var maxDepth int
	cmd := &cobra.Command{
		Use:   "shortest <from-id> <to-id>",
		Short: "Compare shortest paths",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComparison(cmd, opts, copts, func(c *equivalence.Checker) (*equivalence.Report, error) {
				return c.CompareShortestPath(cmd.Context(), args[0], args[1], maxDepth)
			})
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", 5, "maximum number of edges in the path")
	return cmd
}

func newCompareAllCmd(opts *rootOptions, copts *compareOptions) *cobra.Command {
	var maxDepth, limit int
	cmd := &cobra.Command{
		Use:   "all <from-id> <to-id>",
		Short: "Compare all-paths results",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComparison(cmd, opts, copts, func(c *equivalence.Checker) (*equivalence.Report, error) {
				return c.CompareAllPaths(cmd.Context(), args[0], args[1], maxDepth, limit)
			})
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", 5, "maximum number of edges per path")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of paths (0 for no limit)")
	return cmd
}
