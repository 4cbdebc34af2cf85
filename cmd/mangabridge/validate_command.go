package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mangabridge/internal/app"
	"mangabridge/internal/services"
)

func newValidateCommand(session *cliSession) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate <title> <episode>",
		Short: "Check an episode number against the franchise total",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, episode, err := titleAndEpisode(args)
			if err != nil {
				return err
			}
			return session.withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Gate.Validate(cmd.Context(), title, episode)
				if err != nil && !errors.Is(err, services.ErrEpisodeOutOfRange) {
					return err
				}
				if asJSON {
					if jsonErr := writeJSON(cmd, result); jsonErr != nil {
						return jsonErr
					}
					return err
				}
				out := cmd.OutOrStdout()
				total := fmt.Sprintf("%d", result.TotalEpisodes)
				if result.Unbounded {
					total += "+ (still airing)"
				}
				fmt.Fprintf(out, "Title:          %s\n", result.Title)
				fmt.Fprintf(out, "Total episodes: %s\n", total)
				fmt.Fprintf(out, "Valid:          %s\n", yesNo(result.Valid))
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the verdict as JSON")
	return cmd
}
