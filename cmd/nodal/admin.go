package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Maintenance: stats, checkpoint, vacuum, optimize, gc, resize-wal",
	}
	cmd.AddCommand(newAdminStatsCmd())
	cmd.AddCommand(newAdminCheckpointCmd())
	cmd.AddCommand(newAdminVacuumCmd())
	cmd.AddCommand(newAdminOptimizeCmd())
	cmd.AddCommand(newAdminGCCmd())
	cmd.AddCommand(newAdminResizeWalCmd())
	return cmd
}

func newAdminStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print snapshot, delta, and WAL counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openReadOnly(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()
			return printJSON(db.Stats())
		},
	}
}

func newAdminCheckpointCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint",
		Short: "Fold the active WAL into a new snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Checkpoint(); err != nil {
				return err
			}
			fmt.Println("checkpoint complete")
			return nil
		},
	}
}

func newAdminVacuumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Checkpoint so the superseded snapshot's space joins the free list",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Vacuum(); err != nil {
				return err
			}
			fmt.Println("vacuum complete")
			return nil
		},
	}
}

func newAdminOptimizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Retrain and compact every vector index, then checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Optimize(); err != nil {
				return err
			}
			fmt.Println("optimize complete")
			return nil
		},
	}
}

func newAdminGCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Sweep MVCC write-set versions no longer visible to any reader",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()
			db.RunGC()
			fmt.Println("gc complete")
			return nil
		},
	}
}

func newAdminResizeWalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resize-wal <bytes>",
		Short: "Grow or shrink the quiescent WAL region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid size %q: %w", args[0], err)
			}

			db, err := openDB(dataPath(cmd))
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.ResizeWal(size); err != nil {
				return err
			}
			fmt.Printf("wal resized to %d bytes\n", size)
			return nil
		},
	}
}
