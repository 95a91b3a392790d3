package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"snsnotify/internal/api"
	"snsnotify/internal/notifier"
	"snsnotify/internal/settings"
	"snsnotify/internal/testsupport"
)

const testTopic = "arn:aws:sns:us-west-2:123456789012:builds"

type recordingClient struct {
	published *[]notifier.PublishInput
}

func (c recordingClient) Publish(_ context.Context, in notifier.PublishInput) (string, error) {
	*c.published = append(*c.published, in)
	return "msg-1", nil
}

func (recordingClient) Close() error { return nil }

type harness struct {
	handler   http.Handler
	published []notifier.PublishInput
	spans     *tracetest.SpanRecorder
	cfgPath   string
}

func newHarness(t *testing.T, token string) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(token))
	st := testsupport.MustOpenStore(t, cfg)
	h := &harness{
		spans:   tracetest.NewSpanRecorder(),
		cfgPath: filepath.Join(testsupport.BaseDir(cfg), "config.toml"),
	}
	manager := settings.NewManager(cfg, h.cfgPath)
	factory := notifier.ClientFactoryFunc(func(context.Context, notifier.ClientOptions) (notifier.Client, error) {
		return recordingClient{published: &h.published}, nil
	})
	svc := notifier.NewService(notifier.NewDispatcher(factory, nil, nil), manager, st, st, nil)
	h.handler = api.NewRouter(api.Options{
		Events:         svc,
		Jobs:           st,
		Settings:       manager,
		Token:          cfg.API.Token,
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans)),
	})
	return h
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestAuthRequiredExceptHealth(t *testing.T) {
	h := newHarness(t, "s3cret")

	if rec := h.do(t, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}
	if rec := h.do(t, http.MethodGet, "/api/v1/jobs", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := h.do(t, http.MethodGet, "/api/v1/jobs", "wrong", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}
	if rec := h.do(t, http.MethodGet, "/api/v1/jobs", "s3cret", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
	if len(h.spans.Ended()) == 0 {
		t.Fatal("expected request spans")
	}
}

func TestJobLifecycleAndBuildEvents(t *testing.T) {
	h := newHarness(t, "")

	rec := h.do(t, http.MethodPut, "/api/v1/jobs/api", "", map[string]string{"topic_arn": testTopic})
	if rec.Code != http.StatusOK {
		t.Fatalf("put job: %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[api.JobResponse](t, rec); got.Job.Job != "api" || got.Job.TopicARN != testTopic {
		t.Fatalf("unexpected job %+v", got)
	}
	if rec := h.do(t, http.MethodPut, "/api/v1/jobs/api", "", map[string]string{"job": "other"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected mismatched name rejected, got %d", rec.Code)
	}

	rec = h.do(t, http.MethodPost, "/api/v1/builds/completed", "", map[string]any{"job": "api", "number": 7, "result": "failure"})
	if rec.Code != http.StatusOK {
		t.Fatalf("completed: %d %s", rec.Code, rec.Body.String())
	}
	resp := decode[api.EventResponse](t, rec)
	if resp.Outcome.Kind != notifier.KindPublished || resp.Outcome.Subject != "Build FAILURE: api #7" {
		t.Fatalf("unexpected outcome %+v", resp.Outcome)
	}
	if len(resp.Log) != 1 || !strings.HasPrefix(resp.Log[0], "Published SNS notification") {
		t.Fatalf("unexpected log %v", resp.Log)
	}
	if len(h.published) != 1 || h.published[0].TopicARN != testTopic {
		t.Fatalf("unexpected publishes %+v", h.published)
	}

	rec = h.do(t, http.MethodPost, "/api/v1/builds/started", "", map[string]any{"job": "api", "number": 8})
	if got := decode[api.EventResponse](t, rec); got.Outcome.Kind != notifier.KindSkipped {
		t.Fatalf("started should be skipped by default, got %+v", got.Outcome)
	}

	rec = h.do(t, http.MethodGet, "/api/v1/jobs/api/builds?limit=10", "", nil)
	builds := decode[api.BuildsResponse](t, rec)
	if len(builds.Builds) != 2 || builds.Builds[0].Number != 8 || !builds.Builds[0].Building || builds.Builds[1].Result != "FAILURE" {
		t.Fatalf("unexpected builds %+v", builds.Builds)
	}

	if rec := h.do(t, http.MethodDelete, "/api/v1/jobs/api", "", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	if rec := h.do(t, http.MethodGet, "/api/v1/jobs/api", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", rec.Code)
	}
	if rec := h.do(t, http.MethodDelete, "/api/v1/jobs/api", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestBuildEventValidation(t *testing.T) {
	h := newHarness(t, "")
	cases := []struct {
		path string
		body any
	}{
		{"/api/v1/builds/completed", map[string]any{"number": 1}},
		{"/api/v1/builds/started", map[string]any{"job": "api", "number": 1, "result": "SUCCESS"}},
		{"/api/v1/builds/started", map[string]any{"job": "api", "number": 1, "phase": "COMPLETED"}},
		{"/api/v1/builds/completed", "not an object"},
	}
	for _, tc := range cases {
		if rec := h.do(t, http.MethodPost, tc.path, "", tc.body); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s %v: expected 400, got %d", tc.path, tc.body, rec.Code)
		}
	}
}

func TestSettingsAreRedactedAndPersisted(t *testing.T) {
	h := newHarness(t, "")

	rec := h.do(t, http.MethodGet, "/api/v1/settings", "", nil)
	if strings.Contains(rec.Body.String(), "test-secret") {
		t.Fatalf("secret leaked: %s", rec.Body.String())
	}
	view := decode[map[string]any](t, rec)
	if view["secret_key"] != "[redacted]" || view["default_message_template"] != "${BUILD_URL}" {
		t.Fatalf("unexpected settings view %v", view)
	}

	if rec := h.do(t, http.MethodPut, "/api/v1/settings", "", map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty patch: expected 400, got %d", rec.Code)
	}
	if rec := h.do(t, http.MethodPut, "/api/v1/settings", "", map[string]any{"root_url": "not a url"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid patch: expected 400, got %d", rec.Code)
	}

	rec = h.do(t, http.MethodPut, "/api/v1/settings", "", map[string]any{"default_topic_arn": testTopic, "send_on_start": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body.String())
	}
	updated := decode[api.SettingsView](t, rec)
	if updated.DefaultTopicARN != testTopic || !updated.SendOnStart {
		t.Fatalf("unexpected updated settings %+v", updated)
	}
	data, err := os.ReadFile(h.cfgPath)
	if err != nil {
		t.Fatalf("read saved config: %v", err)
	}
	if !strings.Contains(string(data), testTopic) {
		t.Fatalf("saved config missing topic:\n%s", data)
	}
}
