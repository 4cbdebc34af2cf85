package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mangabridge/internal/app"
	"mangabridge/internal/metadata/anilist"
	"mangabridge/internal/services"
)

func newSeasonsCommand(session *cliSession) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "seasons <title>",
		Short: "List the seasons that make up a franchise",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			return session.withApp(cmd.Context(), func(a *app.App) error {
				identity, err := a.Resolver.Resolve(cmd.Context(), title)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, identity)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s: %d episodes", identity.Title, identity.TotalEpisodes)
				if identity.Ongoing() {
					fmt.Fprint(out, " so far")
				}
				if identity.FromOverride {
					fmt.Fprint(out, " (catalog)")
				}
				fmt.Fprintln(out)
				if len(identity.Seasons) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(identity.Seasons))
				for _, season := range identity.Seasons {
					end := "airing"
					if season.End != nil {
						end = strconv.Itoa(*season.End)
					}
					rows = append(rows, []string{
						season.DisplayName,
						strconv.Itoa(season.Start),
						end,
						strconv.Itoa(season.EpisodeCount),
					})
				}
				printTable(out, []column{col("Season"), num("From"), num("To"), num("Episodes")}, rows)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the series identity as JSON")
	return cmd
}

func newArcsCommand(session *cliSession) *cobra.Command {
	return &cobra.Command{
		Use:   "arcs <title>",
		Short: "List the named story arcs known for a title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			return session.withApp(cmd.Context(), func(a *app.App) error {
				arcs, name, ok := a.Catalog.Snapshot().Arcs(title)
				if !ok {
					return services.Wrap(services.ErrNotFound, "cli", "arcs", fmt.Sprintf("no arcs known for %q", title), nil)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, name)
				rows := make([][]string, 0, len(arcs))
				for _, arc := range arcs {
					end := "ongoing"
					if arc.End != nil {
						end = strconv.Itoa(*arc.End)
					}
					rows = append(rows, []string{arc.Name, strconv.Itoa(arc.Start), end})
				}
				printTable(out, []column{col("Arc"), num("From"), num("To")}, rows)
				return nil
			})
		},
	}
}

func newSearchCommand(session *cliSession) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search AniList for anime titles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return session.withApp(cmd.Context(), func(a *app.App) error {
				results, err := a.AniList.SearchList(cmd.Context(), query)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintln(out, "No matches")
					return nil
				}
				printTable(out, []column{num("ID"), col("Title"), col("Format"), num("Episodes"), num("Year")}, mediaRows(results, false))
				return nil
			})
		},
	}
}

func newTrendingCommand(session *cliSession) *cobra.Command {
	return &cobra.Command{
		Use:   "trending",
		Short: "Show currently airing anime trending on AniList",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return session.withApp(cmd.Context(), func(a *app.App) error {
				results, err := a.AniList.Trending(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintln(out, "Nothing trending right now")
					return nil
				}
				printTable(out, []column{num("ID"), col("Title"), col("Format"), num("Episodes"), num("Year"), col("Next episode")}, mediaRows(results, true))
				return nil
			})
		},
	}
}

func mediaRows(results []anilist.Media, withAiring bool) [][]string {
	now := time.Now()
	rows := make([][]string, 0, len(results))
	for _, media := range results {
		episodes := "?"
		if media.Episodes > 0 {
			episodes = strconv.Itoa(media.Episodes)
		}
		year := ""
		if media.SeasonYear > 0 {
			year = strconv.Itoa(media.SeasonYear)
		}
		row := []string{strconv.Itoa(media.ID), media.Title.Display(), media.Format, episodes, year}
		if withAiring {
			next := ""
			if airing := media.NextAiringEpisode; airing != nil {
				at := now.Add(time.Duration(airing.TimeUntilAiring) * time.Second)
				next = fmt.Sprintf("ep %d %s", airing.Episode, humanize.Time(at))
			}
			row = append(row, next)
		}
		rows = append(rows, row)
	}
	return rows
}
