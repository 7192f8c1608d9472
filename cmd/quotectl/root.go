package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stemstr/arweave-upload/internal/db"
)

var (
	dbType string
	dbURL  string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbType, "db", "", db.TypeSQLite, "database type: sqlite or postgres")
	rootCmd.PersistentFlags().StringVarP(&dbURL, "dburl", "", "quotes.db", "database url: /path/to/quotes.db or postgresql://...")
}

var rootCmd = &cobra.Command{
	Use:          "quotectl",
	Short:        "inspect arweave upload quotes",
	SilenceUsage: true,
}

func openRepo() (*db.Repo, error) {
	repo, err := db.Open(dbType, dbURL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbType, err)
	}
	return repo, nil
}
