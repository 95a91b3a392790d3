package jobfile_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"snsnotify/internal/build"
	"snsnotify/internal/jobfile"
	"snsnotify/internal/testsupport"
)

const manifest = `
jobs:
  - job: " api "
    topic_arn: arn:aws:sns:us-east-1:123456789012:builds
    subject_template: "[${BUILD_RESULT}] ${JOB_NAME}"
  - job: web
    topic_arn: not-an-arn
    message_template: "${BUILD_URL}"
  - job: docs
`

func TestParseManifest(t *testing.T) {
	m, err := jobfile.Parse([]byte(manifest))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(m.Jobs))
	}
	want := build.JobConfig{Job: "api", TopicARN: "arn:aws:sns:us-east-1:123456789012:builds", SubjectTemplate: "[${BUILD_RESULT}] ${JOB_NAME}"}
	if m.Jobs[0] != want {
		t.Fatalf("unexpected first job %+v", m.Jobs[0])
	}
	warnings := m.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], `job "web"`) {
		t.Fatalf("unexpected warnings %v", warnings)
	}
}

func TestParseRejectsInvalidManifests(t *testing.T) {
	cases := map[string]string{
		"missing name":  "jobs:\n  - topic_arn: x\n",
		"duplicate":     "jobs:\n  - job: a\n  - job: a\n",
		"unknown field": "jobs:\n  - job: a\n    topic: x\n",
		"bad yaml":      "jobs: [",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := jobfile.Parse([]byte(data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseEmptyManifest(t *testing.T) {
	m, err := jobfile.Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Jobs) != 0 {
		t.Fatalf("expected no jobs, got %+v", m.Jobs)
	}
}

func TestApplyWritesAndPrunes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.AttachJob(t, st, build.JobConfig{Job: "legacy"})

	path := filepath.Join(testsupport.BaseDir(cfg), "jobs.yaml")
	testsupport.WriteFile(t, path, manifest)
	m, err := jobfile.LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	ctx := context.Background()
	res, err := jobfile.Apply(ctx, st, m, false)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Written) != 3 || len(res.Removed) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, ok, _ := st.JobConfig(ctx, "legacy"); !ok {
		t.Fatal("legacy job should survive without prune")
	}

	res, err = jobfile.Apply(ctx, st, m, true)
	if err != nil {
		t.Fatalf("Apply prune: %v", err)
	}
	if len(res.Removed) != 1 || res.Removed[0] != "legacy" {
		t.Fatalf("expected legacy removed, got %+v", res)
	}
	jobs, _ := st.ListJobs(ctx)
	if len(jobs) != 3 {
		t.Fatalf("expected 3 stored jobs, got %+v", jobs)
	}
}
