// Package equivalence runs the same query against two graph backends and
// reports where their answers diverge.
package equivalence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/xkilldash9x/scalpel-graph/api/schemas"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options controls how strictly two answers must agree.
type Options struct {
	// CompareContent also diffs labels and normalized properties, not just ids.
	CompareContent bool
	// IgnoreOrder compares results as sets.
	IgnoreOrder bool
	// Rules decide which properties are expected to differ.
	Rules HeuristicRules
}

// DefaultOptions compares ids, order and content, ignoring volatile properties.
func DefaultOptions() Options {
	return Options{CompareContent: true, Rules: DefaultRules()}
}

// Side is one backend's answer.
type Side struct {
	Backend schemas.BackendType `json:"backend" yaml:"backend"`
	Keys    []string            `json:"keys" yaml:"keys"`
	Elapsed time.Duration       `json:"elapsed" yaml:"elapsed"`
}

// Report describes how two answers to the same query relate.
type Report struct {
	Operation    string   `json:"operation" yaml:"operation"`
	Left         Side     `json:"left" yaml:"left"`
	Right        Side     `json:"right" yaml:"right"`
	OnlyLeft     []string `json:"only_left" yaml:"only_left"`
	OnlyRight    []string `json:"only_right" yaml:"only_right"`
	OrderMatches bool     `json:"order_matches" yaml:"order_matches"`
	OrderIgnored bool     `json:"order_ignored,omitempty" yaml:"order_ignored,omitempty"`
	Diff         string   `json:"diff,omitempty" yaml:"diff,omitempty"`
}

// Equivalent reports whether both backends returned the same answer.
func (r *Report) Equivalent() bool {
	return len(r.OnlyLeft) == 0 && len(r.OnlyRight) == 0 &&
		(r.OrderMatches || r.OrderIgnored) && r.Diff == ""
}

// record is the comparable projection of one result element.
type record struct {
	Key        string
	Labels     []string
	Properties map[string]interface{}
}

// Checker compares two connected backends.
type Checker struct {
	left, right schemas.GraphBackend
	opts        Options
	normalizer  *Normalizer
	logger      *zap.Logger
}

// NewChecker creates a checker over two already connected backends.
func NewChecker(left, right schemas.GraphBackend, logger *zap.Logger, opts Options) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		left:       left,
		right:      right,
		opts:       opts,
		normalizer: NewNormalizer(opts.Rules),
		logger:     logger.Named("equivalence"),
	}
}

// CompareTraversal runs Traverse on both backends concurrently.
func (c *Checker) CompareTraversal(ctx context.Context, startID string, params schemas.TraversalParams) (*Report, error) {
	return c.compare(ctx, "traverse", func(ctx context.Context, b schemas.GraphBackend) ([]record, error) {
		nodes, err := b.Traverse(ctx, startID, params)
		if err != nil {
			return nil, err
		}
		return c.nodeRecords(nodes), nil
	})
}

// CompareShortestPath runs FindShortestPath on both backends concurrently.
// A missing path is an empty answer.
func (c *Checker) CompareShortestPath(ctx context.Context, startID, endID string, maxDepth int) (*Report, error) {
	return c.compare(ctx, "shortest_path", func(ctx context.Context, b schemas.GraphBackend) ([]record, error) {
		path, err := b.FindShortestPath(ctx, startID, endID, maxDepth)
		if err != nil {
			return nil, err
		}
		if path == nil {
			return []record{}, nil
		}
		return []record{{Key: PathKey(*path)}}, nil
	})
}

// CompareAllPaths runs FindAllPaths on both backends concurrently.
func (c *Checker) CompareAllPaths(ctx context.Context, startID, endID string, maxDepth, limit int) (*Report, error) {
	return c.compare(ctx, "all_paths", func(ctx context.Context, b schemas.GraphBackend) ([]record, error) {
		paths, err := b.FindAllPaths(ctx, startID, endID, maxDepth, limit)
		if err != nil {
			return nil, err
		}
		out := make([]record, len(paths))
		for i, p := range paths {
			out[i] = record{Key: PathKey(p)}
		}
		return out, nil
	})
}

// PathKey renders a path as "a -[ab]-> b -[bc]-> c".
func PathKey(p schemas.Path) string {
	var b strings.Builder
	for i, n := range p.Nodes {
		if i > 0 && i-1 < len(p.Edges) {
			fmt.Fprintf(&b, " -[%s]-> ", p.Edges[i-1].ID)
		}
		b.WriteString(n.ID)
	}
	return b.String()
}

func (c *Checker) nodeRecords(nodes []schemas.GraphNode) []record {
	out := make([]record, len(nodes))
	for i, n := range nodes {
		out[i] = record{Key: n.ID}
		if c.opts.CompareContent {
			out[i].Labels = n.Labels
			out[i].Properties = c.normalizer.NormalizeProperties(n.Properties)
		}
	}
	return out
}

// compare fans fetch out to both backends. The first failure cancels the other call.
func (c *Checker) compare(ctx context.Context, op string, fetch func(context.Context, schemas.GraphBackend) ([]record, error)) (*Report, error) {
	var left, right []record
	report := &Report{
		Operation:    op,
		Left:         Side{Backend: c.left.Backend()},
		Right:        Side{Backend: c.right.Backend()},
		OrderIgnored: c.opts.IgnoreOrder,
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		recs, err := fetch(groupCtx, c.left)
		if err != nil {
			return fmt.Errorf("%s (left): %w", c.left.Backend(), err)
		}
		left = recs
		report.Left.Elapsed = time.Since(start)
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		recs, err := fetch(groupCtx, c.right)
		if err != nil {
			return fmt.Errorf("%s (right): %w", c.right.Backend(), err)
		}
		right = recs
		report.Right.Elapsed = time.Since(start)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to run %s on both backends: %w", op, err)
	}

	report.Left.Keys = keys(left)
	report.Right.Keys = keys(right)
	report.OnlyLeft, report.OnlyRight = setDifference(report.Left.Keys, report.Right.Keys)
	report.OrderMatches = cmp.Equal(report.Left.Keys, report.Right.Keys)
	if c.opts.CompareContent {
		report.Diff = cmp.Diff(left, right, c.cmpOptions()...)
	}

	c.logger.Debug("Equivalence check completed",
		zap.String("operation", op),
		zap.Int("left_count", len(left)),
		zap.Int("right_count", len(right)),
		zap.Bool("equivalent", report.Equivalent()),
	)
	return report, nil
}

func (c *Checker) cmpOptions() cmp.Options {
	opts := cmp.Options{
		cmpopts.EquateEmpty(),
	}
	if c.opts.IgnoreOrder {
		opts = append(opts, cmpopts.SortSlices(func(a, b record) bool { return a.Key < b.Key }))
	}
	return opts
}

func keys(recs []record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Key
	}
	return out
}

// setDifference returns the sorted keys present on only one side.
func setDifference(left, right []string) (onlyLeft, onlyRight []string) {
	inLeft := make(map[string]struct{}, len(left))
	for _, k := range left {
		inLeft[k] = struct{}{}
	}
	inRight := make(map[string]struct{}, len(right))
	for _, k := range right {
		inRight[k] = struct{}{}
	}
	onlyLeft, onlyRight = []string{}, []string{}
	for k := range inLeft {
		if _, ok := inRight[k]; !ok {
			onlyLeft = append(onlyLeft, k)
		}
	}
	for k := range inRight {
		if _, ok := inLeft[k]; !ok {
			onlyRight = append(onlyRight, k)
		}
	}
	sort.Strings(onlyLeft)
	sort.Strings(onlyRight)
	return onlyLeft, onlyRight
}
