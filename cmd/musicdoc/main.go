package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	noColor  bool
	asUserID string
)

var rootCmd = &cobra.Command{
	Use:           "musicdoc",
	Short:         "Generate narrated music documentaries",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("NO_COLOR") != "" || !isTerminal(os.Stderr) {
			noColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&asUserID, "user", "", "user id sent as X-User-ID")

	rootCmd.AddCommand(serveCmd, mcpCmd, statusCmd)
	rootCmd.AddCommand(generateCmd, jobsCmd, playlistsCmd, configCmd)
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
