package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newToolsCommand(project *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools available to the executor",
		Long: "Tools lists the built-in tools plus any plugin definitions found " +
			"under .concierge/tools/. The browser is not started; grocery tools " +
			"are listed even when Chrome is unavailable.",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, err := resolveProjectDir(*project)
			if err != nil {
				return err
			}
			env, err := newEnvironment(cmd.Context(), projectDir, envOptions{})
			if err != nil {
				return err
			}
			defer env.Close()

			out := cmd.OutOrStdout()
			for _, sig := range env.tools.Signatures() {
				fmt.Fprintln(out, sig)
			}
			return nil
		},
	}
}
