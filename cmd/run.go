// -- cmd/run.go --
package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/browser"
	"github.com/xkilldash9x/webpilot/internal/observability"
	"github.com/xkilldash9x/webpilot/internal/recorder"
	"github.com/xkilldash9x/webpilot/internal/store"
	"github.com/xkilldash9x/webpilot/internal/vars"
	"github.com/xkilldash9x/webpilot/internal/workflow"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	var (
		bindingFlags []string
		resumeFrom   string
	)

	runCmd := &cobra.Command{
		Use:   "run [workflow file]",
		Short: "Executes a workflow definition against a live browser",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := appCfg

			fileStore, err := store.NewFileStore(cfg.Store.Dir, logger)
			if err != nil {
				return err
			}
			def, err := fileStore.LoadDefinition(args[0])
			if err != nil {
				return err
			}
			if err := workflow.Validate(def); err != nil {
				return fmt.Errorf("workflow %s is invalid: %w", args[0], err)
			}

			bindings, err := parseBindings(bindingFlags)
			if err != nil {
				return err
			}

			opts := []workflow.Option{workflow.WithInitialBindings(bindings)}
			if resumeFrom != "" {
				checkpoint, err := schemas.ParseStepPath(resumeFrom)
				if err != nil {
					return fmt.Errorf("invalid --resume-from path: %w", err)
				}
				opts = append(opts, workflow.ResumeFrom(checkpoint))
			}

			manager := browser.NewManager(cfg, logger)
			defer manager.Shutdown()
			session, err := manager.NewSession(ctx)
			if err != nil {
				return fmt.Errorf("failed to start browser session: %w", err)
			}
			defer session.Close()

			runner := workflow.NewRunner(cfg, def, session, logger, opts...)
			rec := recorder.New(def.Name, logger)

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec.Consume(runner.Events())
			}()

			runErr := runner.Run(ctx)
			wg.Wait()

			record := rec.Record()
			if err := persistRecord(cmd, record); err != nil {
				logger.Warn("Failed to persist execution record.", zap.Error(err))
			}

			status := runner.Status()
			fmt.Fprintf(cmd.OutOrStdout(), "run %s finished: %s (%d steps recorded)\n",
				status.RunID, status.State, len(record.Entries))
			if runErr != nil {
				return fmt.Errorf("workflow %q failed at step %s: %w", def.Name, status.CurrentStep, runErr)
			}
			return nil
		},
	}

	runCmd.Flags().StringArrayVar(&bindingFlags, "var", nil, "initial variable binding as name=value (repeatable)")
	runCmd.Flags().StringVar(&resumeFrom, "resume-from", "", "checkpoint step path to resume after, e.g. 2.1")
	return runCmd
}

// persistRecord writes the trace to the configured backend.
func persistRecord(cmd *cobra.Command, record schemas.ExecutionRecord) error {
	if len(record.Entries) == 0 {
		return nil
	}
	ctx := cmd.Context()
	logger := observability.GetLogger()
	cfg := appCfg

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
		return pg.SaveRecord(ctx, record)
	}

	fileStore, err := store.NewFileStore(cfg.Store.Dir, logger)
	if err != nil {
		return err
	}
	return fileStore.SaveRecord(record)
}

// parseBindings turns repeated name=value flags into typed bindings.
// Values that parse as YYYY-MM-DD dates or as numbers get their natural
// type; everything else stays a string.
func parseBindings(flags []string) (vars.Bindings, error) {
	bindings := make(vars.Bindings, len(flags))
	for _, raw := range flags {
		name, value, found := strings.Cut(raw, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid --var %q, expected name=value", raw)
		}
		bindings[name] = typedValue(value)
	}
	return bindings, nil
}

func typedValue(value string) vars.Value {
	if t, err := time.Parse(vars.DateLayout, value); err == nil {
		return vars.Date(t)
	}
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		return vars.Number(n)
	}
	return vars.String(value)
}
