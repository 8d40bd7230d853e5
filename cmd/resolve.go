// -- cmd/resolve.go --
package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/dom"
	"github.com/xkilldash9x/webpilot/internal/intent"
	"github.com/xkilldash9x/webpilot/internal/observability"
	"github.com/xkilldash9x/webpilot/internal/scoring"
)

// newResolveCmd creates the `resolve` command: offline element resolution
// of one instruction against a saved HTML page.
func newResolveCmd() *cobra.Command {
	var htmlPath string

	resolveCmd := &cobra.Command{
		Use:   "resolve [instruction]",
		Short: "Resolves a natural-language instruction against a saved HTML page",
		Long: `Parses the HTML file, extracts candidate elements and reports which
element the instruction would act on, with its score and strategy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := appCfg

			f, err := os.Open(htmlPath)
			if err != nil {
				return fmt.Errorf("failed to open HTML file: %w", err)
			}
			defer f.Close()

			nodes, err := dom.ParseHTML(f)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", htmlPath, err)
			}
			candidates := dom.Extract(0, nodes)

			var inferrer intent.IntentInferrer
			if cfg.Intent.LLMEnabled {
				gemini, err := intent.NewGeminiInferrer(ctx, cfg.Intent, logger)
				if err != nil {
					return fmt.Errorf("failed to initialize intent inference: %w", err)
				}
				inferrer = gemini
			}
			resolver := intent.NewResolver(logger, inferrer)
			descriptor := resolver.Resolve(ctx, args[0])

			engine := scoring.NewEngine(cfg.Scoring, logger)
			match, err := engine.Resolve(descriptor, candidates)
			if err != nil {
				return err
			}

			out := struct {
				Intent schemas.IntentDescriptor `json:"intent"`
				Match  schemas.MatchResult      `json:"match"`
			}{descriptor, match}

			encoded, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}

	resolveCmd.Flags().StringVar(&htmlPath, "html", "", "path to the saved HTML page (required)")
	resolveCmd.MarkFlagRequired("html")
	return resolveCmd
}
