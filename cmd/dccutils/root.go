package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Running the root command without a
// subcommand serves.
func newRootCmd() *cobra.Command {
	var opts options

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the automation API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(opts)
		},
	}

	rootCmd := &cobra.Command{
		Use:           "dccutils",
		Short:         "HTTP automation server for DCC host applications",
		Long:          `dccutils exposes a DCC host's scene, camera and capture operations over HTTP, running every host call on the host's main loop.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serveCmd.RunE,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config file (default $DCCUTILS_CONFIG)")
	flags.StringVar(&opts.mode, "mode", "", "bridge mode: auto, direct or bridged (overrides bridge.mode)")

	rootCmd.AddCommand(serveCmd, newVersionCmd())
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "dccutils %s (commit %s, built %s)\n", version, commit, date)
			return err
		},
	}
}
