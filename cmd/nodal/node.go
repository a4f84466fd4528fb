package main

import (
	"fmt"
	"strconv"

	"github.com/nodalgraph/nodal/pkg/model"
	"github.com/spf13/cobra"
)

func newNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Create, inspect, and delete nodes",
	}
	cmd.AddCommand(newNodeCreateCmd())
	cmd.AddCommand(newNodeGetCmd())
	cmd.AddCommand(newNodeDeleteCmd())
	cmd.AddCommand(newNodeListCmd())
	return cmd
}

func newNodeCreateCmd() *cobra.Command {
	var key, labels string
	var props []string
	c := &cobra.Command{
		Use:   "create",
		Short: "Create a new node",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()

			labelIDs, err := resolveLabels(db, labels)
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
			id, err := tx.CreateNode(key, labelIDs, propMap)
			if err != nil {
				tx.Rollback()
				return err
			}
			if err := tx.Commit(); err != nil {
				return err
			}
			fmt.Printf("created node %d\n", id)
			return nil
		},
	}
	c.Flags().StringVar(&key, "key", "", "unique node key (optional)")
	c.Flags().StringVar(&labels, "labels", "", "comma-separated label names")
	c.Flags().StringArrayVar(&props, "prop", nil, "key=value property, repeatable")
	return c
}

func newNodeGetCmd() *cobra.Command {
	var key string
	c := &cobra.Command{
		Use:   "get [id]",
		Short: "Print a node's key, labels, and properties",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openReadOnly(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()

			id, err := resolveNodeArg(db, args, key)
			if err != nil {
				return err
			}
			node, err := db.GetNode(id)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"id":     node.ID,
				"key":    node.Key,
				"labels": formatLabels(db, node.Labels),
				"props":  formatProps(db, node.Props),
			})
		},
	}
	c.Flags().StringVar(&key, "key", "", "look up by key instead of ID")
	return c
}

func newNodeDeleteCmd() *cobra.Command {
	var key string
	c := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a node",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()

			id, err := resolveNodeArg(db, args, key)
			if err != nil {
				return err
			}
			node, err := db.GetNode(id)
			if err != nil {
				return err
			}

			tx, err := db.Begin(false)
			if err != nil {
				return err
			}
			if err := tx.DeleteNode(id, node.Key); err != nil {
				tx.Rollback()
				return err
			}
			if err := tx.Commit(); err != nil {
				return err
			}
			fmt.Printf("deleted node %d\n", id)
			return nil
		},
	}
	c.Flags().StringVar(&key, "key", "", "look up by key instead of ID")
	return c
}

func newNodeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every live node ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openReadOnly(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()
			return printJSON(db.ListNodes())
		},
	}
}

// resolveNodeArg resolves a node ID from either a positional ID argument or
// a --key lookup.
func resolveNodeArg(db interface {
	GetNodeByKey(string) (model.NodeID, bool)
}, args []string, key string) (model.NodeID, error) {
	if key != "" {
		id, ok := db.GetNodeByKey(key)
		if !ok {
			return 0, fmt.Errorf("no node with key %q", key)
		}
		return id, nil
	}
	if len(args) == 0 {
		return 0, fmt.Errorf("either a node ID argument or --key is required")
	}
	n, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid node id %q: %w", args[0], err)
	}
	return model.NodeID(n), nil
}
