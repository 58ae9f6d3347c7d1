/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/bookingd/apiserver/config"
	"github.com/bookingd/apiserver/internal/store/mongostore"
	"github.com/spf13/cobra"
)

// indexesCmd creates the MongoDB indexes, including the unique email and
// username indexes the account checks rely on.
var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create MongoDB indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		s, err := mongostore.Open(cmd.Context(), cfg.Mongo.URI, cfg.Mongo.DBName)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.EnsureIndexes(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexes ensured on %s\n", cfg.Mongo.DBName)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexesCmd)
}
