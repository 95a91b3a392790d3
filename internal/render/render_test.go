package render_test

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"snsnotify/internal/build"
	"snsnotify/internal/render"
)

func completed(result build.Result) build.Event {
	return build.Event{Job: "MyJob", Number: 42, Phase: build.PhaseCompleted, Result: result}
}

func TestDefaultSubject(t *testing.T) {
	r := render.New(nil, nil)
	if got := r.Subject("", completed(build.ResultFailure), nil); got != "Build FAILURE: MyJob #42" {
		t.Fatalf("unexpected default subject %q", got)
	}
	started := build.Event{Job: "MyJob", Number: 43, Phase: build.PhaseStarted}
	if got := r.Subject("  ", started, nil); got != "Build STARTED: MyJob #43" {
		t.Fatalf("unexpected started subject %q", got)
	}
	absent := completed("")
	if got := r.Subject("", absent, nil); got != "Build STARTED: MyJob #42" {
		t.Fatalf("absent result should read STARTED, got %q", got)
	}
}

func TestSubjectTruncatesToHundredCharacters(t *testing.T) {
	r := render.New(nil, nil)
	tmpl := strings.Repeat("x", 150)
	got := r.Subject(tmpl, completed(build.ResultSuccess), nil)
	if len(got) != render.MaxSubjectLength {
		t.Fatalf("expected %d characters, got %d", render.MaxSubjectLength, len(got))
	}

	long := completed(build.ResultUnstable)
	long.DisplayName = strings.Repeat("é", 120)
	got = r.Subject("", long, nil)
	if utf8.RuneCountInString(got) != render.MaxSubjectLength || !utf8.ValidString(got) {
		t.Fatalf("expected 100 valid runes, got %d", utf8.RuneCountInString(got))
	}
	if strings.HasSuffix(got, "...") || strings.HasSuffix(got, "…") {
		t.Fatal("truncation must not add an ellipsis")
	}
}

func TestRenderWithoutVariablesIsIdentity(t *testing.T) {
	r := render.New(nil, nil)
	inputs := []string{"", "plain text", "cost is $5 and {braces}", "$HOME stays", "${unclosed"}
	ev := completed(build.ResultSuccess)
	ev.Environment = map[string]string{"HOME": "/root"}
	for _, in := range inputs {
		if got := r.Render(in, ev, nil); got != in {
			t.Fatalf("Render(%q) = %q", in, got)
		}
	}
}

func TestRenderSynthesizedVariables(t *testing.T) {
	r := render.New(nil, nil)
	ev := completed(build.ResultUnstable)
	ev.DurationMillis = 1234
	ev.ArtifactPaths = []string{"a.zip", "b.log"}

	got := r.Render("${BUILD_PHASE}|${BUILD_RESULT}|${BUILD_DURATION}|${BUILD_ARTIFACT_PATHS}", ev, nil)
	want := "COMPLETED|UNSTABLE|1234|a.zip\nb.log"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if got := r.Render("${BUILD_ARTIFACT_PATHS}", ev, nil); got != "a.zip\nb.log" {
		t.Fatalf("unexpected artifact paths %q", got)
	}
}

func TestRenderPassOrder(t *testing.T) {
	r := render.New(nil, nil)
	ev := completed(build.ResultSuccess)
	ev.Variables = map[string]string{"BRANCH": "main", "TARGET": "${DEPLOY_ENV}"}
	ev.Environment = map[string]string{"BRANCH": "from-env", "DEPLOY_ENV": "staging", "BUILD_RESULT": "spoofed"}

	got := r.Render("${BRANCH} ${TARGET} ${BUILD_RESULT} ${MISSING}", ev, map[string]string{"DEPLOY_ENV": "extra"})
	if got != "main staging SUCCESS ${MISSING}" {
		t.Fatalf("unexpected render %q", got)
	}
}

func TestRenderFallsBackOnEnvironmentFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	failing := render.EnvironmentFunc(func(build.Event) (map[string]string, error) {
		return nil, errors.New("workspace offline")
	})
	r := render.New(failing, logger)

	tmpl := "Build ${BUILD_RESULT} for ${JOB_NAME}"
	if got := r.Render(tmpl, completed(build.ResultFailure), nil); got != tmpl {
		t.Fatalf("expected unrendered template, got %q", got)
	}
	if !strings.Contains(buf.String(), "workspace offline") || !strings.Contains(buf.String(), "level=WARN") {
		t.Fatalf("expected warning log, got %q", buf.String())
	}
}

func TestRenderRecoversFromPanickingEnvironment(t *testing.T) {
	panicking := render.EnvironmentFunc(func(build.Event) (map[string]string, error) {
		panic("boom")
	})
	r := render.New(panicking, nil)
	if got := r.Render("${X}", completed(build.ResultSuccess), nil); got != "${X}" {
		t.Fatalf("expected template back, got %q", got)
	}
}

func TestMessageFallsBackToDefault(t *testing.T) {
	r := render.New(nil, nil)
	ev := completed(build.ResultSuccess)
	extra := map[string]string{render.VarBuildURL: "https://ci.example.com/job/MyJob/42/"}
	if got := r.Message("", "${BUILD_URL}", ev, extra); got != "https://ci.example.com/job/MyJob/42/" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := r.Message("Result: ${BUILD_RESULT}", "${BUILD_URL}", ev, extra); got != "Result: SUCCESS" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		root, url, want string
	}{
		{"https://ci.example.com/", "job/MyJob/42/", "https://ci.example.com/job/MyJob/42/"},
		{"https://ci.example.com", "/job/My Job/42/", "https://ci.example.com/job/My%20Job/42/"},
		{"", "job/MyJob/42/", render.RootURLUnset + "/job/MyJob/42/"},
		{"https://ignored/", "https://other.example.com/job/x/1/", "https://other.example.com/job/x/1/"},
		{"https://ci.example.com/", " ", "https://ci.example.com/"},
		{"", "", render.RootURLUnset + "/"},
	}
	for _, tc := range tests {
		if got := render.BuildURL(tc.root, tc.url); got != tc.want {
			t.Fatalf("BuildURL(%q, %q) = %q, want %q", tc.root, tc.url, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := render.Truncate("short", 100); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := render.Truncate("abcdef", 3); got != "abc" {
		t.Fatalf("unexpected %q", got)
	}
}
