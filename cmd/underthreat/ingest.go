package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ebahrami/underthreat/config"
	"github.com/ebahrami/underthreat/internal/species"
)

func ingestCMD() *cobra.Command {
	var cfgPath string
	var fixturesDir string
	var ingest = &cobra.Command{
		Use:   "ingest",
		Short: "Seed the embedded store from JSON fixture files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			path := cfg.Databases.SQLite.Path
			if path == "" {
				path = "data/underthreat.db"
			}
			store, err := species.NewSQLiteStore(path)
			if err != nil {
				return err
			}
			defer store.Close()

			counts, err := store.IngestFixtures(cmd.Context(), fixturesDir)
			if err != nil {
				return err
			}
			for _, table := range species.FixtureTables {
				if n, ok := counts[table]; ok {
					fmt.Printf("%s: %d rows\n", table, n)
				}
			}
			return nil
		},
	}
	ingest.Flags().StringVar(&fixturesDir, "fixtures", "fixtures", "directory containing <table>.json files")
	ingest.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return ingest
}
