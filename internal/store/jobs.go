package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"snsnotify/internal/build"
)

const jobColumns = "job, topic_arn, subject_template, message_template"

func scanJob(scanner interface{ Scan(dest ...any) error }) (build.JobConfig, error) {
	var (
		job             string
		topicARN        sql.NullString
		subjectTemplate sql.NullString
		messageTemplate sql.NullString
	)
	if err := scanner.Scan(&job, &topicARN, &subjectTemplate, &messageTemplate); err != nil {
		return build.JobConfig{}, err
	}
	return build.JobConfig{
		Job:             job,
		TopicARN:        topicARN.String,
		SubjectTemplate: subjectTemplate.String,
		MessageTemplate: messageTemplate.String,
	}, nil
}

// JobConfig returns the attachment for job. The bool is false when the job
// has no notifier attached.
func (s *Store) JobConfig(ctx context.Context, job string) (build.JobConfig, bool, error) {
	cfg, err := s.GetJob(ctx, job)
	if errors.Is(err, ErrNotFound) {
		return build.JobConfig{}, false, nil
	}
	if err != nil {
		return build.JobConfig{}, false, err
	}
	return cfg, true, nil
}

// GetJob returns the attachment for job or ErrNotFound.
func (s *Store) GetJob(ctx context.Context, job string) (build.JobConfig, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE job = ?", job)
	cfg, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return build.JobConfig{}, fmt.Errorf("job %q: %w", job, ErrNotFound)
	}
	if err != nil {
		return build.JobConfig{}, fmt.Errorf("get job %q: %w", job, err)
	}
	return cfg, nil
}

// PutJob creates or replaces the attachment for cfg.Job.
func (s *Store) PutJob(ctx context.Context, cfg build.JobConfig) error {
	cfg.Job = strings.TrimSpace(cfg.Job)
	if cfg.Job == "" {
		return errors.New("put job: job name is required")
	}
	now := s.timestamp()
	_, err := s.execWithRetry(ctx, `INSERT INTO jobs (job, topic_arn, subject_template, message_template, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(job) DO UPDATE SET
    topic_arn = excluded.topic_arn,
    subject_template = excluded.subject_template,
    message_template = excluded.message_template,
    updated_at = excluded.updated_at`,
		cfg.Job,
		nullableString(strings.TrimSpace(cfg.TopicARN)),
		nullableString(cfg.SubjectTemplate),
		nullableString(cfg.MessageTemplate),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("put job %q: %w", cfg.Job, err)
	}
	return nil
}

// DeleteJob detaches the notifier from job. Build history is kept.
func (s *Store) DeleteJob(ctx context.Context, job string) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM jobs WHERE job = ?", job)
	if err != nil {
		return fmt.Errorf("delete job %q: %w", job, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %q: %w", job, ErrNotFound)
	}
	return nil
}

// ListJobs returns all attachments ordered by job name.
func (s *Store) ListJobs(ctx context.Context) ([]build.JobConfig, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY job")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []build.JobConfig
	for rows.Next() {
		cfg, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, cfg)
	}
	return jobs, rows.Err()
}
