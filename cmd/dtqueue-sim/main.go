// Command dtqueue-sim drives a synthetic single-process run of the
// task queue against the in-memory transport fake, for manual
// exploration of the scheduler's behavior. It is not part of the
// library's public contract.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xuanhan863/dtqueue/pkg/dtlog"
	"github.com/xuanhan863/dtqueue/pkg/dtqueue"
	"github.com/xuanhan863/dtqueue/pkg/dtqueue/config"
	"github.com/xuanhan863/dtqueue/pkg/spatial"
	"github.com/xuanhan863/dtqueue/pkg/transport"
)

var (
	numWorkers    int
	numSubtrees   int
	numArrivals   int
	pointsPerLeaf int64
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "dtqueue-sim",
	Short: "run a synthetic single-process dual-tree task queue simulation",
	Long: `
  dtqueue-sim builds a small query tree, seeds a stream of synthetic
  reference-subtable arrivals, and drains the resulting tasks with a
  pool of worker goroutines racing a communication goroutine, purely
  against the in-memory transport fake.
`,
	RunE: runSim,
}

func main() {
	rootCmd.Flags().IntVar(&numWorkers, "workers", 4, "number of worker goroutines")
	rootCmd.Flags().IntVar(&numSubtrees, "subtrees", 4, "target number of initial query subtrees")
	rootCmd.Flags().IntVar(&numArrivals, "arrivals", 20, "number of synthetic reference arrivals to inject")
	rootCmd.Flags().Int64Var(&pointsPerLeaf, "leaf-points", 64, "reference points per synthetic leaf")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSim(cmd *cobra.Command, args []string) error {
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		dtlog.SetOutput(l)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	metric := spatial.EuclideanMetric{}
	root := buildSyntheticQueryTree(numSubtrees, pointsPerLeaf)
	referenceRoot := buildSyntheticQueryTree(numSubtrees, pointsPerLeaf)

	mt := transport.NewMemTransport("local-reference-table")
	metrics := dtqueue.NewMetrics()
	q := dtqueue.New(config.Config{NumThreads: numWorkers}, mt, metrics)

	totalRef := referenceRoot.Count()
	totalQuery := root.Count()
	if err := q.Init(ctx, 0, root, "query-table", "reference-table", uint64(totalQuery), uint64(totalRef), uint64(totalQuery)); err != nil {
		return err
	}

	seedArrivals(mt, referenceRoot, numArrivals)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return commLoop(ctx, q, mt, metric) })
	for w := 0; w < numWorkers; w++ {
		g.Go(func() error { return workerLoop(ctx, q) })
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	fmt.Printf("done: remaining global computation = %d\n", q.RemainingGlobalComputation())
	return nil
}

// commLoop stands in for the communication thread of spec §5: it
// synchronously turns transport arrivals into tasks until the
// transport reports no more work and the queue can terminate.
func commLoop(ctx context.Context, q *dtqueue.Queue, mt *transport.MemTransport, metric spatial.Metric) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		arrivals, err := q.SendReceive(ctx, -1, metric)
		if err != nil {
			return err
		}
		if len(arrivals) == 0 && q.RemainingGlobalComputation() == 0 {
			mt.MarkGlobalDone()
			return nil
		}
		if len(arrivals) > 0 {
			if err := q.GenerateTasks(ctx, metric, arrivals); err != nil {
				return err
			}
		}
		if err := q.RedistributeAmongCores(ctx, metric); err != nil {
			return err
		}
		time.Sleep(time.Millisecond)
	}
}

// workerLoop stands in for one worker thread of spec §5: poll for a
// task, "run" the kernel, retire the work, release the cache slot.
func workerLoop(ctx context.Context, q *dtqueue.Queue) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		res := q.DequeueAny(true)
		if !res.Found {
			if q.CanTerminate() {
				return nil
			}
			q.SetSplitRequested()
			time.Sleep(time.Millisecond)
			continue
		}

		t := res.Task
		quantity := uint64(t.Subtree.Count) * uint64(t.ReferenceNode.Count())
		if err := q.PushCompletedComputation(ctx, t.Subtree, uint64(t.ReferenceNode.Count()), quantity); err != nil {
			return err
		}
		if err := q.ReleaseCache(t.Slot, 1); err != nil {
			return err
		}
		if err := q.UnlockQuerySubtree(t.Subtree); err != nil {
			return err
		}
	}
}

func buildSyntheticQueryTree(targetLeaves int, leafPoints int64) *spatial.TreeNode {
	leaves := make([]*spatial.TreeNode, 0, targetLeaves)
	var begin int64
	for i := 0; i < targetLeaves; i++ {
		lo := float64(i)
		leaves = append(leaves, spatial.NewLeaf(begin, leafPoints, spatial.AABB{Lo: []float64{lo}, Hi: []float64{lo + 1}}))
		begin += leafPoints
	}
	for len(leaves) > 1 {
		var next []*spatial.TreeNode
		for i := 0; i+1 < len(leaves); i += 2 {
			next = append(next, spatial.NewInternal(leaves[i], leaves[i+1]))
		}
		if len(leaves)%2 == 1 {
			next = append(next, leaves[len(leaves)-1])
		}
		leaves = next
	}
	return leaves[0]
}

func seedArrivals(mt *transport.MemTransport, referenceRoot *spatial.TreeNode, n int) {
	rng := rand.New(rand.NewSource(1))
	leaves := collectLeaves(referenceRoot)
	arrivals := make([]transport.Arrival, 0, n)
	for i := 0; i < n; i++ {
		leaf := leaves[rng.Intn(len(leaves))]
		slot := transport.NewSlotID()
		mt.StageSubTable(slot, &transport.SubTable{Table: "reference-table", Root: leaf})
		arrivals = append(arrivals, transport.Arrival{
			Rank:     0,
			RefBegin: leaf.Begin(),
			RefCount: leaf.Count(),
			Slot:     slot,
		})
	}
	mt.Inject(arrivals...)
}

func collectLeaves(n *spatial.TreeNode) []*spatial.TreeNode {
	if n.IsLeaf() {
		return []*spatial.TreeNode{n}
	}
	var out []*spatial.TreeNode
	if l, ok := n.Left().(*spatial.TreeNode); ok && l != nil {
		out = append(out, collectLeaves(l)...)
	}
	if r, ok := n.Right().(*spatial.TreeNode); ok && r != nil {
		out = append(out, collectLeaves(r)...)
	}
	return out
}
