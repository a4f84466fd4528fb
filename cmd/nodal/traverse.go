package main

import (
	"fmt"
	"strconv"

	"github.com/nodalgraph/nodal/pkg/graph"
	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/spf13/cobra"
)

func newTraverseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "traverse",
		Short: "Path and reachability queries",
	}
	cmd.AddCommand(newBFSCmd())
	cmd.AddCommand(newShortestPathCmd())
	cmd.AddCommand(newReachableCmd())
	return cmd
}

func parseNodeID(s string) (model.NodeID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid node id %q: %w", s, err)
	}
	return model.NodeID(n), nil
}

func newBFSCmd() *cobra.Command {
	var maxDepth int
	var etypes string
	c := &cobra.Command{
		Use:   "bfs <source> <target>",
		Short: "Find the shortest unweighted path between two nodes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := parseNodeID(args[0])
			if err != nil {
				return err
			}
			target, err := parseNodeID(args[1])
			if err != nil {
				return err
			}

			db, err := openReadOnly(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()

			allowed, err := resolveEtypeList(db, etypes)
			if err != nil {
				return err
			}

			res := db.BFS(source, target, allowed, maxDepth)
			return printJSON(res)
		},
	}
	c.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum hops (0 = unlimited)")
	c.Flags().StringVar(&etypes, "types", "", "comma-separated edge types to allow (default: all)")
	return c
}

func newShortestPathCmd() *cobra.Command {
	var weightProp string
	var etypeName string
	var dirFlag string
	c := &cobra.Command{
		Use:   "shortest-path <source> <target>",
		Short: "Find the lowest total-weight path between two nodes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := parseNodeID(args[0])
			if err != nil {
				return err
			}
			target, err := parseNodeID(args[1])
			if err != nil {
				return err
			}

			db, err := openReadOnly(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()

			weightID, err := resolvePropKeyID(db, weightProp)
			if err != nil {
				return err
			}
			etypeID, hasEtype, err := resolveEtypeFilter(db, etypeName)
			if err != nil {
				return err
			}

			cfg := graphDijkstraConfig(source, target, weightID, dirFlag, etypeID, hasEtype)
			res := db.ShortestPath(cfg)
			return printJSON(res)
		},
	}
	c.Flags().StringVar(&weightProp, "weight", "", "edge property to use as weight (missing = 1.0)")
	c.Flags().StringVar(&etypeName, "type", "", "restrict to a single edge type")
	c.Flags().StringVar(&dirFlag, "dir", "out", "in, out, or both")
	return c
}

func newReachableCmd() *cobra.Command {
	var maxDepth int
	var etypeName string
	var dirFlag string
	c := &cobra.Command{
		Use:   "reachable <source>",
		Short: "List every node reachable from source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := parseNodeID(args[0])
			if err != nil {
				return err
			}

			db, err := openReadOnly(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()

			etypeID, hasEtype, err := resolveEtypeFilter(db, etypeName)
			if err != nil {
				return err
			}
			dir, err := parseDirection(dirFlag)
			if err != nil {
				return err
			}

			return printJSON(db.ReachableNodes(source, maxDepth, etypeID, hasEtype, dir))
		},
	}
	c.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum hops (0 = unlimited)")
	c.Flags().StringVar(&etypeName, "type", "", "restrict to a single edge type")
	c.Flags().StringVar(&dirFlag, "dir", "out", "in, out, or both")
	return c
}

func graphDijkstraConfig(source, target model.NodeID, weightID model.PropKeyID, dirFlag string, etypeID model.ETypeID, hasEtype bool) graph.DijkstraConfig {
	dir, err := parseDirection(dirFlag)
	if err != nil {
		dir = model.Out
	}
	return graph.DijkstraConfig{
		Source:      source,
		Target:      target,
		WeightKeyID: weightID,
		Direction:   dir,
		Etype:       etypeID,
		HasEtype:    hasEtype,
	}
}

func parseDirection(s string) (model.Direction, error) {
	switch s {
	case "out", "":
		return model.Out, nil
	case "in":
		return model.In, nil
	case "both":
		return model.Both, nil
	default:
		return 0, fmt.Errorf("--dir must be in, out, or both, got %q", s)
	}
}

func resolveEtypeFilter(db interface {
	EtypeID(string) (model.ETypeID, bool)
}, name string) (model.ETypeID, bool, error) {
	if name == "" {
		return 0, false, nil
	}
	id, ok := db.EtypeID(name)
	if !ok {
		return 0, false, fmt.Errorf("unknown edge type %q", name)
	}
	return id, true, nil
}

func resolvePropKeyID(db interface {
	PropKeyID(string) (model.PropKeyID, bool)
}, name string) (model.PropKeyID, error) {
	if name == "" {
		return 0, nil
	}
	id, ok := db.PropKeyID(name)
	if !ok {
		return 0, fmt.Errorf("unknown property key %q", name)
	}
	return id, nil
}

func resolveEtypeList(db interface {
	EtypeID(string) (model.ETypeID, bool)
}, csv string) ([]model.ETypeID, error) {
	names := splitCSV(csv)
	out := make([]model.ETypeID, 0, len(names))
	for _, name := range names {
		id, ok := db.EtypeID(name)
		if !ok {
			return nil, fmt.Errorf("unknown edge type %q", name)
		}
		out = append(out, id)
	}
	return out, nil
}
