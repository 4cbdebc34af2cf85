package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mangabridge/internal/app"
	"mangabridge/internal/config"
	"mangabridge/internal/resolution"
	"mangabridge/internal/services"
)

func newResolveCommand(session *cliSession) *cobra.Command {
	var (
		season   string
		estimate bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <title> <episode>",
		Short: "Find the manga chapter an episode ends on",
		Example: `  mangabridge resolve Naruto 5
  mangabridge resolve "Attack on Titan" 60 --season "Season 3"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, episode, err := titleAndEpisode(args)
			if err != nil {
				return err
			}
			req := resolution.Request{Title: title, Episode: episode, Season: strings.TrimSpace(season)}
			if estimate {
				req.Policy = config.PolicyEstimate
			}
			return session.withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Pipeline.Resolve(cmd.Context(), req)
				if asJSON {
					if err != nil {
						if encodeErr := writeJSON(cmd, services.NewFailure(err)); encodeErr != nil {
							return encodeErr
						}
						return err
					}
					return writeJSON(cmd, result)
				}
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&season, "season", "", "Season label passed to the lookup models")
	cmd.Flags().BoolVar(&estimate, "estimate", false, "Fall back to a pacing estimate when the models fail")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func printResult(out io.Writer, result resolution.Result) {
	fmt.Fprintf(out, "%s episode %d\n", result.Title, result.Episode)
	if result.IsFiller {
		fmt.Fprintln(out, "Filler episode: not adapted from the manga")
		if result.Arc != "" {
			fmt.Fprintf(out, "Arc:      %s\n", result.Arc)
		}
		return
	}
	chapterLine := fmt.Sprintf("Chapter:  %d (%s", result.Chapter, result.Source)
	if result.Confidence != "" {
		chapterLine += ", " + result.Confidence + " confidence"
	}
	fmt.Fprintln(out, chapterLine+")")
	if result.Volume > 0 {
		fmt.Fprintf(out, "Volume:   %d (%s)\n", result.Volume, result.VolumeSource)
	}
	if result.Arc != "" {
		fmt.Fprintf(out, "Arc:      %s\n", result.Arc)
	}
	if result.Season != "" {
		fmt.Fprintf(out, "Season:   %s\n", result.Season)
	}
	if result.Context != "" {
		fmt.Fprintf(out, "Context:  %s\n", result.Context)
	}
	if result.CoverURL != "" {
		fmt.Fprintf(out, "Cover:    %s\n", result.CoverURL)
	}
	if result.Note != "" {
		fmt.Fprintf(out, "Note:     %s\n", result.Note)
	}
}
