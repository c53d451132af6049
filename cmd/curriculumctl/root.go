package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

type rootOptions struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "curriculumctl",
		Short: "Offline tools for the curriculum generation pipeline",
		Long: `curriculumctl runs parts of the curriculum pipeline without the API server.

Input files may be YAML or JSON. Provider selection follows the server's
configuration (LLM_PROVIDER, OPENAI_API_KEY, ANTHROPIC_API_KEY, CONFIG_FILE).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log pipeline progress to stderr")

	cmd.AddCommand(newClusterCmd())
	cmd.AddCommand(newGenerateCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	return cmd
}

// logger returns a stderr logger when verbose, otherwise a no-op one.
func (o *rootOptions) logger() (*logger.Logger, error) {
	if o == nil || !o.verbose {
		return logger.Nop(), nil
	}
	return logger.New("development")
}
