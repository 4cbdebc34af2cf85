package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mangabridge/internal/app"
)

func newHistoryCommand(session *cliSession) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show or clear recent searches",
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent searches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return session.withApp(cmd.Context(), func(a *app.App) error {
				entries, err := a.Store.History(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No searches yet")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					chapter := "filler"
					if !entry.IsFiller {
						chapter = strconv.Itoa(entry.Chapter)
					}
					rows = append(rows, []string{
						entry.Title,
						strconv.Itoa(entry.Episode),
						chapter,
						optionalInt(entry.Volume),
						entry.Source,
						humanize.Time(entry.SearchedAt),
					})
				}
				printTable(out, []column{col("Title"), num("Episode"), num("Chapter"), num("Volume"), col("Source"), col("When")}, rows)
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Print the history as JSON")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget all recent searches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return session.withApp(cmd.Context(), func(a *app.App) error {
				removed, err := a.Store.ClearHistory(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s %s from history\n", humanize.Comma(removed), plural(removed, "search", "searches"))
				return nil
			})
		},
	}

	historyCmd.AddCommand(listCmd, clearCmd)
	return historyCmd
}

func newCacheCommand(session *cliSession) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the AniList volume cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached volume counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return session.withApp(cmd.Context(), func(a *app.App) error {
				entries, err := a.Store.Volumes(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Volume cache is empty")
					return nil
				}
				now := time.Now()
				ttl := a.Store.VolumeTTL()
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					state := "fresh"
					if entry.Expired(now, ttl) {
						state = "stale"
					}
					rows = append(rows, []string{
						strconv.Itoa(entry.SeriesID),
						entry.MangaTitle,
						optionalInt(entry.Volumes),
						optionalInt(entry.Chapters),
						humanize.Time(entry.FetchedAt),
						state,
					})
				}
				printTable(out, []column{num("Series"), col("Manga"), num("Volumes"), num("Chapters"), col("Fetched"), col("State")}, rows)
				return nil
			})
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Remove entries older than the volume TTL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return session.withApp(cmd.Context(), func(a *app.App) error {
				removed, err := a.Store.PruneVolumes(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %s stale %s\n", humanize.Comma(removed), plural(removed, "entry", "entries"))
				return nil
			})
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached volume count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return session.withApp(cmd.Context(), func(a *app.App) error {
				removed, err := a.Store.ClearVolumes(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s cached %s\n", humanize.Comma(removed), plural(removed, "entry", "entries"))
				return nil
			})
		},
	})

	return cacheCmd
}

func optionalInt(value int) string {
	if value <= 0 {
		return "-"
	}
	return strconv.Itoa(value)
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
