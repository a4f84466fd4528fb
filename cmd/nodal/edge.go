package main

import (
	"fmt"
	"strconv"

	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/spf13/cobra"
)

func newEdgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edge",
		Short: "Create, inspect, and delete edges",
	}
	cmd.AddCommand(newEdgeAddCmd())
	cmd.AddCommand(newEdgeDeleteCmd())
	cmd.AddCommand(newEdgeListCmd())
	return cmd
}

func parseEdgeArgs(args []string) (src uint64, etype, dst string, err error) {
	if len(args) != 3 {
		return 0, "", "", fmt.Errorf("want src type dst, got %d args", len(args))
	}
	s, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return 0, "", "", fmt.Errorf("invalid src id %q: %w", args[0], err)
	}
	return s, args[1], args[2], nil
}

func newEdgeAddCmd() *cobra.Command {
	var props []string
	c := &cobra.Command{
		Use:   "add <src> <type> <dst>",
		Short: "Add an edge src -type-> dst",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, etype, dst, err := parseEdgeArgs(args)
			if err != nil {
				return err
			}
			dstID, err := strconv.ParseUint(dst, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid dst id %q: %w", dst, err)
			}

			db, err := openDB(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()

			etypeID, err := db.GetOrCreateEtype(etype)
			if err != nil {
				return err
			}
			propMap, err := resolveProps(db, props)
			if err != nil {
				return err
			}

			tx, err := db.Begin(false)
			if err != nil {
				return err
			}
			if err := tx.AddEdge(model.NodeID(src), etypeID, model.NodeID(dstID)); err != nil {
				tx.Rollback()
				return err
			}
			for key, val := range propMap {
				e := model.Edge{Src: model.NodeID(src), Etype: etypeID, Dst: model.NodeID(dstID)}
				if err := tx.SetEdgeProp(e, key, val); err != nil {
					tx.Rollback()
					return err
				}
			}
			if err := tx.Commit(); err != nil {
				return err
			}
			fmt.Printf("added edge %d -%s-> %s\n", src, etype, dst)
			return nil
		},
	}
	c.Flags().StringArrayVar(&props, "prop", nil, "key=value edge property, repeatable")
	return c
}

func newEdgeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <src> <type> <dst>",
		Short: "Remove an edge",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, etype, dst, err := parseEdgeArgs(args)
			if err != nil {
				return err
			}
			dstID, err := strconv.ParseUint(dst, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid dst id %q: %w", dst, err)
			}

			db, err := openDB(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()

			etypeID, ok := db.EtypeID(etype)
			if !ok {
				return fmt.Errorf("unknown edge type %q", etype)
			}

			tx, err := db.Begin(false)
			if err != nil {
				return err
			}
			if err := tx.DeleteEdge(model.NodeID(src), etypeID, model.NodeID(dstID)); err != nil {
				tx.Rollback()
				return err
			}
			if err := tx.Commit(); err != nil {
				return err
			}
			fmt.Printf("deleted edge %d -%s-> %s\n", src, etype, dst)
			return nil
		},
	}
}

func newEdgeListCmd() *cobra.Command {
	var etypeName string
	var direction string
	c := &cobra.Command{
		Use:   "list <node-id>",
		Short: "List a node's neighbors",
		Args:  cobra.ExactArgs(1),
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

			var etypeID model.ETypeID
			hasEtype := etypeName != ""
			if hasEtype {
				var ok bool
				etypeID, ok = db.EtypeID(etypeName)
				if !ok {
					return fmt.Errorf("unknown edge type %q", etypeName)
				}
			}

			var neighbors []model.Neighbor
			switch direction {
			case "in":
				neighbors = db.NeighborsIn(model.NodeID(id), etypeID, hasEtype)
			case "out", "":
				neighbors = db.NeighborsOut(model.NodeID(id), etypeID, hasEtype)
			default:
				return fmt.Errorf("--dir must be in or out, got %q", direction)
			}

			out := make([]map[string]interface{}, 0, len(neighbors))
			for _, n := range neighbors {
				name, _ := db.EtypeName(n.Etype)
				out = append(out, map[string]interface{}{"type": name, "node": n.Other})
			}
			return printJSON(out)
		},
	}
	c.Flags().StringVar(&etypeName, "type", "", "filter to a single edge type")
	c.Flags().StringVar(&direction, "dir", "out", "in or out")
	return c
}
