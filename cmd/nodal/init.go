package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new, empty database file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := dataPath(cmd)
			db, err := openDB(path)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Printf("initialized database at %s\n", path)
			return nil
		},
	}
}
