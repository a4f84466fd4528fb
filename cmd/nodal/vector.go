package main

import (
	"fmt"
	"strconv"

	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/nodalgraph/nodal/pkg/vector"
	"github.com/spf13/cobra"
)

func newVectorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vector",
		Short: "Create and query per-property vector indexes",
	}
	cmd.AddCommand(newVectorCreateIndexCmd())
	cmd.AddCommand(newVectorSetCmd())
	cmd.AddCommand(newVectorGetCmd())
	cmd.AddCommand(newVectorSearchCmd())
	cmd.AddCommand(newVectorBuildCmd())
	cmd.AddCommand(newVectorCompactCmd())
	cmd.AddCommand(newVectorStatsCmd())
	return cmd
}

func parseMetric(s string) (vector.Metric, error) {
	switch s {
	case "cosine", "":
		return vector.Cosine, nil
	case "euclidean":
		return vector.Euclidean, nil
	case "dot":
		return vector.Dot, nil
	default:
		return 0, fmt.Errorf("--metric must be cosine, euclidean, or dot, got %q", s)
	}
}

func newVectorCreateIndexCmd() *cobra.Command {
	var dim uint32
	var metricName string
	var normalized bool
	var rowGroupSize, fragmentTargetSize uint32
	c := &cobra.Command{
		Use:   "create-index <prop>",
		Short: "Create a vector index on a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metric, err := parseMetric(metricName)
			if err != nil {
				return err
			}

			db, err := openDB(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()

			propKey, err := db.GetOrCreatePropKey(args[0])
			if err != nil {
				return err
			}

			cfg := vector.IndexConfig{
				Dim:                dim,
				Metric:             metric,
				Normalized:         normalized,
				RowGroupSize:       rowGroupSize,
				FragmentTargetSize: fragmentTargetSize,
			}
			if err := db.CreateVectorIndex(propKey, cfg); err != nil {
				return err
			}
			fmt.Printf("created %s index on %q (dim=%d)\n", metric, args[0], dim)
			return nil
		},
	}
	c.Flags().Uint32Var(&dim, "dim", 0, "vector dimension (required)")
	c.Flags().StringVar(&metricName, "metric", "cosine", "cosine, euclidean, or dot")
	c.Flags().BoolVar(&normalized, "normalized", false, "vectors are pre-normalized to unit length")
	c.Flags().Uint32Var(&rowGroupSize, "row-group-size", 0, "rows per fragment row group (0 = default)")
	c.Flags().Uint32Var(&fragmentTargetSize, "fragment-target-size", 0, "target rows per fragment (0 = default)")
	c.MarkFlagRequired("dim")
	return c
}

func newVectorSetCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "set <node-id> <prop> <v1,v2,...>",
		Short: "Set a node's vector under a property",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid node id %q: %w", args[0], err)
			}
			vec, err := parseVector(args[2])
			if err != nil {
				return err
			}

			db, err := openDB(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()

			propKey, err := db.GetOrCreatePropKey(args[1])
			if err != nil {
				return err
			}

			tx, err := db.Begin(false)
			if err != nil {
				return err
			}
			if err := tx.SetNodeVector(model.NodeID(id), propKey, vec); err != nil {
				tx.Rollback()
				return err
			}
			if err := tx.Commit(); err != nil {
				return err
			}
			fmt.Printf("set vector on node %d prop %q (%d dims)\n", id, args[1], len(vec))
			return nil
		},
	}
	return c
}

func newVectorGetCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "get <node-id> <prop>",
		Short: "Print a node's vector under a property",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid node id %q: %w", args[0], err)
			}

			db, err := openReadOnly(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()

			propKey, ok := db.PropKeyID(args[1])
			if !ok {
				return fmt.Errorf("unknown property key %q", args[1])
			}
			vec, err := db.GetNodeVector(propKey, model.NodeID(id))
			if err != nil {
				return err
			}
			return printJSON(vec)
		},
	}
	return c
}

func newVectorSearchCmd() *cobra.Command {
	var k int
	var nProbe int
	var modeName string
	c := &cobra.Command{
		Use:   "search <prop> <v1,v2,...>",
		Short: "Find the k nearest vectors to a query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseVector(args[1])
			if err != nil {
				return err
			}
			mode, err := parseSearchMode(modeName)
			if err != nil {
				return err
			}

			db, err := openReadOnly(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()

			propKey, ok := db.PropKeyID(args[0])
			if !ok {
				return fmt.Errorf("unknown property key %q", args[0])
			}

			results, err := db.SearchVectors(propKey, query, k, vector.SearchOptions{
				Mode:   mode,
				NProbe: nProbe,
			})
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
	c.Flags().IntVar(&k, "k", 10, "number of nearest neighbors to return")
	c.Flags().IntVar(&nProbe, "n-probe", 0, "IVF clusters to probe (0 = use trained default)")
	c.Flags().StringVar(&modeName, "mode", "auto", "auto, brute-force, ivf, or ivf-pq")
	return c
}

func parseSearchMode(s string) (vector.SearchMode, error) {
	switch s {
	case "auto", "":
		return vector.ModeAuto, nil
	case "brute-force":
		return vector.ModeBruteForce, nil
	case "ivf":
		return vector.ModeIVF, nil
	case "ivf-pq":
		return vector.ModeIVFPQ, nil
	default:
		return 0, fmt.Errorf("--mode must be auto, brute-force, ivf, or ivf-pq, got %q", s)
	}
}

func newVectorBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build-index <prop>",
		Short: "(Re)train an index's IVF/PQ side structures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()

			propKey, ok := db.PropKeyID(args[0])
			if !ok {
				return fmt.Errorf("unknown property key %q", args[0])
			}
			if err := db.BuildVectorIndex(propKey); err != nil {
				return err
			}
			fmt.Printf("built index on %q\n", args[0])
			return nil
		},
	}
}

func newVectorCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact <prop>",
		Short: "Fuse an index's fragments, discarding tombstoned rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()

			propKey, ok := db.PropKeyID(args[0])
			if !ok {
				return fmt.Errorf("unknown property key %q", args[0])
			}
			before, after, err := db.CompactVectorIndex(propKey)
			if err != nil {
				return err
			}
			fmt.Printf("compacted %q: %d -> %d rows\n", args[0], before, after)
			return nil
		},
	}
}

func newVectorStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print live counters for every vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openReadOnly(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()
			return printJSON(db.VectorStats())
		},
	}
}
