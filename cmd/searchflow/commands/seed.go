package commands

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/elastiflow/searchflow/gateway"
)

func openDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	return gateway.OpenSQLite(path)
}

func seedCmd() *cobra.Command {
	var fixturesPath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the sqlite database and insert the fixtures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fixtures := gateway.DefaultFixtures()
			if fixturesPath == "" {
				fixturesPath = app.cfg.Gateway.Fixtures
			}
			if fixturesPath != "" {
				loaded, err := gateway.LoadFixtures(fixturesPath)
				if err != nil {
					return err
				}
				fixtures = loaded
			}
			db, err := openDB(app.cfg.Gateway.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := gateway.Seed(cmd.Context(), db, fixtures)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d records into %s\n", n, app.cfg.Gateway.DBPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturesPath, "fixtures", "", "fixture file (default: gateway.fixtures or the built-in set)")
	return cmd
}
