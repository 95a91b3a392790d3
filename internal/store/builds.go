package store

import (
	"context"
	"database/sql"
	"fmt"

	"snsnotify/internal/build"
)

const buildColumns = "job, number, display_name, url, result, duration_ms, building, started_at, completed_at"

// maxListLimit caps history queries.
const maxListLimit = 500

func scanBuild(scanner interface{ Scan(dest ...any) error }) (build.Record, error) {
	var (
		rec         build.Record
		displayName sql.NullString
		url         sql.NullString
		result      sql.NullString
		building    int
		startedRaw  sql.NullString
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(&rec.Job, &rec.Number, &displayName, &url, &result, &rec.DurationMillis, &building, &startedRaw, &finishedRaw); err != nil {
		return build.Record{}, err
	}
	rec.DisplayName = displayName.String
	rec.URL = url.String
	rec.Result = build.Result(result.String)
	rec.Building = building != 0
	if t, err := parseTimeString(startedRaw.String); err == nil {
		rec.StartedAt = t
	}
	if t, err := parseTimeString(finishedRaw.String); err == nil {
		rec.CompletedAt = t
	}
	return rec, nil
}

// RecordStarted marks ev's build as in progress. A repeated start for the
// same build resets it to building without touching an existing start time.
func (s *Store) RecordStarted(ctx context.Context, ev build.Event) error {
	_, err := s.execWithRetry(ctx, `INSERT INTO builds (job, number, display_name, url, building, started_at)
VALUES (?, ?, ?, ?, 1, ?)
ON CONFLICT(job, number) DO UPDATE SET
    display_name = COALESCE(excluded.display_name, builds.display_name),
    url = COALESCE(excluded.url, builds.url),
    building = 1,
    result = NULL,
    started_at = COALESCE(builds.started_at, excluded.started_at)`,
		ev.Job,
		ev.Number,
		nullableString(ev.DisplayName),
		nullableString(ev.URL),
		s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("record started %s #%d: %w", ev.Job, ev.Number, err)
	}
	return nil
}

// RecordCompleted stores ev's result. Completion without a prior start is
// accepted.
func (s *Store) RecordCompleted(ctx context.Context, ev build.Event) error {
	now := s.timestamp()
	_, err := s.execWithRetry(ctx, `INSERT INTO builds (job, number, display_name, url, result, duration_ms, building, started_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
ON CONFLICT(job, number) DO UPDATE SET
    display_name = COALESCE(excluded.display_name, builds.display_name),
    url = COALESCE(excluded.url, builds.url),
    result = excluded.result,
    duration_ms = excluded.duration_ms,
    building = 0,
    completed_at = excluded.completed_at`,
		ev.Job,
		ev.Number,
		nullableString(ev.DisplayName),
		nullableString(ev.URL),
		nullableString(string(ev.Result)),
		ev.DurationMillis,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("record completed %s #%d: %w", ev.Job, ev.Number, err)
	}
	return nil
}

// PriorBuilds returns up to limit builds of job numbered below before,
// newest first.
func (s *Store) PriorBuilds(ctx context.Context, job string, before int64, limit int) ([]build.Record, error) {
	return s.queryBuilds(ctx, "SELECT "+buildColumns+" FROM builds WHERE job = ? AND number < ? ORDER BY number DESC LIMIT ?",
		job, before, clampLimit(limit))
}

// ListBuilds returns up to limit most recent builds of job, newest first.
func (s *Store) ListBuilds(ctx context.Context, job string, limit int) ([]build.Record, error) {
	return s.queryBuilds(ctx, "SELECT "+buildColumns+" FROM builds WHERE job = ? ORDER BY number DESC LIMIT ?",
		job, clampLimit(limit))
}

func (s *Store) queryBuilds(ctx context.Context, query string, args ...any) ([]build.Record, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var records []build.Record
	for rows.Next() {
		rec, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
