package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// VolumeEntry is cached manga volume information for one anime series.
type VolumeEntry struct {
	SeriesID   int       `json:"series_id"`
	MangaID    int       `json:"manga_id,omitempty"`
	MangaTitle string    `json:"manga_title,omitempty"`
	Volumes    int       `json:"volumes,omitempty"`
	Chapters   int       `json:"chapters,omitempty"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Expired reports whether the entry is older than ttl at now.
func (e VolumeEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) > ttl
}

const volumeColumns = "series_id, manga_id, manga_title, volumes, chapters, fetched_at"

// Volume returns the fresh cache entry for seriesID. Stale rows are treated
// as misses and left for Prune.
func (s *Store) Volume(ctx context.Context, seriesID int) (VolumeEntry, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+volumeColumns+` FROM volume_cache WHERE series_id = ?`, seriesID)
	entry, err := scanVolume(row)
	if errors.Is(err, sql.ErrNoRows) {
		return VolumeEntry{}, false, nil
	}
	if err != nil {
		return VolumeEntry{}, false, fmt.Errorf("get volume entry: %w", err)
	}
	if entry.Expired(s.now(), s.ttl) {
		return VolumeEntry{}, false, nil
	}
	return entry, true, nil
}

// PutVolume stores entry, replacing any previous row for the series. A zero
// FetchedAt is stamped with the store clock.
func (s *Store) PutVolume(ctx context.Context, entry VolumeEntry) error {
	if entry.SeriesID <= 0 {
		return errors.New("series id is required")
	}
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO volume_cache (`+volumeColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.SeriesID,
		nullableInt(entry.MangaID),
		nullableString(entry.MangaTitle),
		nullableInt(entry.Volumes),
		nullableInt(entry.Chapters),
		formatTime(entry.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("store volume entry: %w", err)
	}
	return nil
}

// Volumes lists every cached row, fresh or not, newest first.
func (s *Store) Volumes(ctx context.Context) ([]VolumeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+volumeColumns+` FROM volume_cache ORDER BY fetched_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list volume entries: %w", err)
	}
	defer rows.Close()

	var entries []VolumeEntry
	for rows.Next() {
		entry, err := scanVolume(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// PruneVolumes deletes expired rows and returns how many were removed.
func (s *Store) PruneVolumes(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl)
	res, err := s.db.ExecContext(ctx, `DELETE FROM volume_cache WHERE fetched_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune volume cache: %w", err)
	}
	return res.RowsAffected()
}

// ClearVolumes removes all cached volume info.
func (s *Store) ClearVolumes(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM volume_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear volume cache: %w", err)
	}
	return res.RowsAffected()
}

// VolumeTTL reports the configured expiry.
func (s *Store) VolumeTTL() time.Duration {
	return s.ttl
}

func scanVolume(scanner interface{ Scan(dest ...any) error }) (VolumeEntry, error) {
	var (
		entry      VolumeEntry
		mangaID    sql.NullInt64
		mangaTitle sql.NullString
		volumes    sql.NullInt64
		chapters   sql.NullInt64
		fetchedRaw string
	)
	if err := scanner.Scan(&entry.SeriesID, &mangaID, &mangaTitle, &volumes, &chapters, &fetchedRaw); err != nil {
		return VolumeEntry{}, err
	}
	fetchedAt, err := parseTime(fetchedRaw)
	if err != nil {
		return VolumeEntry{}, err
	}
	entry.MangaID = int(mangaID.Int64)
	entry.MangaTitle = mangaTitle.String
	entry.Volumes = int(volumes.Int64)
	entry.Chapters = int(chapters.Int64)
	entry.FetchedAt = fetchedAt
	return entry, nil
}
