package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	session := &cliSession{configFlag: &configFlag}

	root := &cobra.Command{
		Use:           "mangabridge",
		Short:         "Find the manga chapter an anime episode ends on",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipsConfig(cmd) {
				return nil
			}
			_, err := session.loadConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	root.AddCommand(
		newResolveCommand(session),
		newValidateCommand(session),
		newSeasonsCommand(session),
		newArcsCommand(session),
		newSearchCommand(session),
		newTrendingCommand(session),
		newHistoryCommand(session),
		newCacheCommand(session),
		newServeCommand(session),
		newConfigCommand(session),
	)
	return root
}
