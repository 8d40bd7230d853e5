// -- cmd/validate.go --
package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/observability"
	"github.com/xkilldash9x/webpilot/internal/store"
	"github.com/xkilldash9x/webpilot/internal/vars"
	"github.com/xkilldash9x/webpilot/internal/workflow"
)

// newValidateCmd creates the `validate` command.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [workflow file]",
		Short: "Statically checks a workflow definition without opening a browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			fileStore, err := store.NewFileStore(appCfg.Store.Dir, logger)
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

			steps := 0
			referenced := map[string]bool{}
			var walk func(list []schemas.Step)
			walk = func(list []schemas.Step) {
				for _, step := range list {
					steps++
					if step.Action != nil {
						for _, name := range vars.Referenced(*step.Action) {
							referenced[name] = true
						}
					}
					walk(step.Children)
				}
			}
			walk(def.Steps)

			names := make([]string, 0, len(referenced))
			for name := range referenced {
				names = append(names, name)
			}
			sort.Strings(names)

			fmt.Fprintf(cmd.OutOrStdout(), "workflow %q is valid: %d steps", def.Name, steps)
			if len(names) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", variables referenced: %v", names)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}
