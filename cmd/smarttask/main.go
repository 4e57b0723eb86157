package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath  string
		verbose     bool
		dumpMetrics bool
		a          = &app{}
	)

	rootCmd := &cobra.Command{
		Use:           "smarttask",
		Short:         "SmartTask - personal task manager with AI planning tips",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out, a.in = cmd.OutOrStdout(), cmd.InOrStdin()
			return a.open(cmd.Context(), configPath, verbose)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			defer a.close()
			if dumpMetrics {
				return a.writeMetrics(a.out)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default $SMARTTASK_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&dumpMetrics, "metrics", false, "print AI assistant counters after the command")

	rootCmd.AddCommand(signupCmd(a))
	rootCmd.AddCommand(loginCmd(a))
	rootCmd.AddCommand(logoutCmd(a))
	rootCmd.AddCommand(whoamiCmd(a))
	rootCmd.AddCommand(listCmd(a))
	rootCmd.AddCommand(addCmd(a))
	rootCmd.AddCommand(editCmd(a))
	rootCmd.AddCommand(doneCmd(a))
	rootCmd.AddCommand(rmCmd(a))
	rootCmd.AddCommand(syncCmd(a))
	rootCmd.AddCommand(summaryCmd(a))
	rootCmd.AddCommand(shareCmd(a))

	return rootCmd
}
