// Package jobfile reads YAML manifests that attach notifier settings to many
// jobs at once.
//
//	jobs:
//	  - job: api
//	    topic_arn: arn:aws:sns:us-east-1:123456789012:builds
//	    subject_template: "[${BUILD_RESULT}] ${JOB_NAME}"
//	  - job: web
package jobfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"snsnotify/internal/build"
	"snsnotify/internal/topic"
)

// Manifest is the decoded manifest file.
type Manifest struct {
	Jobs []build.JobConfig `yaml:"jobs"`
}

// LoadFromFile reads and validates a manifest.
func LoadFromFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job manifest %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("job manifest %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates manifest bytes. Unknown keys are rejected.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}
	for i := range m.Jobs {
		m.Jobs[i].Job = strings.TrimSpace(m.Jobs[i].Job)
		m.Jobs[i].TopicARN = strings.TrimSpace(m.Jobs[i].TopicARN)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return &m, nil
}

// Validate checks that every entry names a job and that names are unique.
func (m *Manifest) Validate() error {
	seen := make(map[string]int, len(m.Jobs))
	for i, job := range m.Jobs {
		if job.Job == "" {
			return fmt.Errorf("jobs[%d]: job name is required", i)
		}
		if prev, ok := seen[job.Job]; ok {
			return fmt.Errorf("jobs[%d]: job %q already defined at jobs[%d]", i, job.Job, prev)
		}
		seen[job.Job] = i
	}
	return nil
}

// Warnings lists entries whose topic will not resolve to an endpoint. These
// jobs can still be imported; dispatch skips them until fixed.
func (m *Manifest) Warnings() []string {
	var out []string
	for _, job := range m.Jobs {
		if job.TopicARN == "" {
			continue
		}
		if _, err := topic.Resolve(job.TopicARN); err != nil {
			out = append(out, fmt.Sprintf("job %q: %v", job.Job, err))
		}
	}
	return out
}

// JobStore is the persistence the importer writes to.
type JobStore interface {
	PutJob(ctx context.Context, cfg build.JobConfig) error
	ListJobs(ctx context.Context) ([]build.JobConfig, error)
	DeleteJob(ctx context.Context, job string) error
}

// Result summarizes an import.
type Result struct {
	Written []string
	Removed []string
}

// Apply writes every manifest entry. With prune set, stored jobs missing
// from the manifest are detached.
func Apply(ctx context.Context, st JobStore, m *Manifest, prune bool) (Result, error) {
	var res Result
	keep := make(map[string]struct{}, len(m.Jobs))
	for _, job := range m.Jobs {
		if err := st.PutJob(ctx, job); err != nil {
			return res, err
		}
		keep[job.Job] = struct{}{}
		res.Written = append(res.Written, job.Job)
	}
	if !prune {
		return res, nil
	}

	existing, err := st.ListJobs(ctx)
	if err != nil {
		return res, err
	}
	for _, job := range existing {
		if _, ok := keep[job.Job]; ok {
			continue
		}
		if err := st.DeleteJob(ctx, job.Job); err != nil {
			return res, err
		}
		res.Removed = append(res.Removed, job.Job)
	}
	return res, nil
}
