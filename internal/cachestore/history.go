package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mangabridge/internal/textutil"
)

// HistoryEntry is one remembered resolution.
type HistoryEntry struct {
	Title      string    `json:"title"`
	Episode    int       `json:"episode"`
	Chapter    int       `json:"chapter,omitempty"`
	Volume     int       `json:"volume,omitempty"`
	CoverURL   string    `json:"cover_url,omitempty"`
	Source     string    `json:"source,omitempty"`
	IsFiller   bool      `json:"is_filler,omitempty"`
	SearchedAt time.Time `json:"searched_at"`
}

const historyColumns = "title, episode, chapter, volume, cover_url, source, is_filler, searched_at"

// RecordSearch stores entry as the most recent search. An earlier entry for
// the same normalized title is replaced and the list is trimmed to the limit.
func (s *Store) RecordSearch(ctx context.Context, entry HistoryEntry) error {
	entry.Title = strings.TrimSpace(entry.Title)
	key := textutil.NormalizeTitle(entry.Title)
	if key == "" {
		return errors.New("history title is required")
	}
	if entry.SearchedAt.IsZero() {
		entry.SearchedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO search_history (title_key, `+historyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key,
		entry.Title,
		entry.Episode,
		nullableInt(entry.Chapter),
		nullableInt(entry.Volume),
		nullableString(entry.CoverURL),
		nullableString(entry.Source),
		boolToInt(entry.IsFiller),
		formatTime(entry.SearchedAt),
	); err != nil {
		return fmt.Errorf("record search: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM search_history WHERE id NOT IN (
            SELECT id FROM search_history ORDER BY searched_at DESC, id DESC LIMIT ?
        )`,
		s.historyLimit,
	); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	return nil
}

// History returns remembered searches, most recent first.
func (s *Store) History(ctx context.Context) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM search_history ORDER BY searched_at DESC, id DESC LIMIT ?`,
		s.historyLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, s.historyLimit)
	for rows.Next() {
		var (
			entry      HistoryEntry
			chapter    sql.NullInt64
			volume     sql.NullInt64
			coverURL   sql.NullString
			source     sql.NullString
			isFiller   int
			searchedAt string
		)
		if err := rows.Scan(&entry.Title, &entry.Episode, &chapter, &volume, &coverURL, &source, &isFiller, &searchedAt); err != nil {
			return nil, err
		}
		when, err := parseTime(searchedAt)
		if err != nil {
			return nil, err
		}
		entry.Chapter = int(chapter.Int64)
		entry.Volume = int(volume.Int64)
		entry.CoverURL = coverURL.String
		entry.Source = source.String
		entry.IsFiller = isFiller != 0
		entry.SearchedAt = when
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ClearHistory removes every remembered search.
func (s *Store) ClearHistory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM search_history`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}
