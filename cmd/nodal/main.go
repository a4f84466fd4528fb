// Package main provides the nodal CLI: a thin cobra front end over
// pkg/engine for creating, inspecting, and maintaining a single-file graph
// database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "nodal",
		Short: "nodal - embedded graph database with vector search",
		Long: `nodal is a single-file embedded graph database: nodes, typed
edges, properties, and per-property vector indexes, backed by a
write-ahead log and periodic snapshot checkpoints.`,
	}
	rootCmd.PersistentFlags().String("data", "./nodal.db", "path to the database file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nodal v%s\n", version)
		},
	})

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newNodeCmd())
	rootCmd.AddCommand(newEdgeCmd())
	rootCmd.AddCommand(newTraverseCmd())
	rootCmd.AddCommand(newVectorCmd())
	rootCmd.AddCommand(newAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func dataPath(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("data")
	return p
}
