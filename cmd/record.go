// -- cmd/record.go --
package cmd

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/observability"
	"github.com/xkilldash9x/webpilot/internal/store"
)

// newRecordCmd creates the `record` command: print the replayable trace of
// a finished run.
func newRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record [run id]",
		Short: "Prints the replayable trace of a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := appCfg

			var record schemas.ExecutionRecord
			if cfg.Store.Backend == "postgres" {
				pool, err := pgxpool.New(ctx, cfg.Store.PostgresURL)
				if err != nil {
					return fmt.Errorf("failed to connect to postgres: %w", err)
				}
				defer pool.Close()
				pg, err := store.NewPostgresStore(ctx, pool, logger)
				if err != nil {
					return err
				}
				record, err = pg.LoadRecord(ctx, args[0])
				if err != nil {
					return err
				}
			} else {
				fileStore, err := store.NewFileStore(cfg.Store.Dir, logger)
				if err != nil {
					return err
				}
				record, err = fileStore.LoadRecord(args[0])
				if err != nil {
					return err
				}
			}

			encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(record, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}
}
