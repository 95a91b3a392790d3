package sns_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"snsnotify/internal/config"
	"snsnotify/internal/notifier"
	"snsnotify/internal/sns"
)

const topicARN = "arn:aws:sns:us-west-2:123456789012:my-topic"

func isolateAWSEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_ENDPOINT_URL", "")
	t.Setenv("AWS_ENDPOINT_URL_SNS", "")
}

// fakeSNS answers Publish in either the query (XML) or JSON protocol,
// whichever the SDK speaks.
func fakeSNS(t *testing.T, fail bool, requests *atomic.Int32, captured *url.Values) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		body, _ := io.ReadAll(r.Body)
		jsonProtocol := strings.Contains(r.Header.Get("Content-Type"), "json")

		if jsonProtocol {
			var payload map[string]any
			_ = json.Unmarshal(body, &payload)
			values := url.Values{}
			for k, v := range payload {
				if s, ok := v.(string); ok {
					values.Set(k, s)
				}
			}
			*captured = values
			w.Header().Set("Content-Type", "application/x-amz-json-1.0")
			if fail {
				w.Header().Set("x-amzn-query-error", "AuthorizationError;Sender")
				w.WriteHeader(http.StatusForbidden)
				_, _ = io.WriteString(w, `{"__type":"AuthorizationError","message":"not allowed"}`)
				return
			}
			_, _ = io.WriteString(w, `{"MessageId":"mid-123"}`)
			return
		}

		values, _ := url.ParseQuery(string(body))
		*captured = values
		w.Header().Set("Content-Type", "text/xml")
		if fail {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `<ErrorResponse xmlns="http://sns.amazonaws.com/doc/2010-03-31/"><Error><Type>Sender</Type><Code>AuthorizationError</Code><Message>not allowed</Message></Error><RequestId>req-1</RequestId></ErrorResponse>`)
			return
		}
		_, _ = io.WriteString(w, `<PublishResponse xmlns="http://sns.amazonaws.com/doc/2010-03-31/"><PublishResult><MessageId>mid-123</MessageId></PublishResult><ResponseMetadata><RequestId>req-1</RequestId></ResponseMetadata></PublishResponse>`)
	}))
}

func staticOptions(endpoint string) notifier.ClientOptions {
	return notifier.ClientOptions{
		Region:    "us-west-2",
		Endpoint:  endpoint,
		AccessKey: "AKIAEXAMPLE",
		SecretKey: config.Secret("secret"),
	}
}

func TestPublishAgainstCustomEndpoint(t *testing.T) {
	isolateAWSEnv(t)
	var requests atomic.Int32
	var captured url.Values
	server := fakeSNS(t, false, &requests, &captured)
	defer server.Close()

	client, err := sns.NewFactory().NewClient(context.Background(), staticOptions(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	id, err := client.Publish(context.Background(), notifier.PublishInput{TopicARN: topicARN, Subject: "Build FAILURE: api #1", Message: "https://ci/job/api/1/"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "mid-123" {
		t.Fatalf("unexpected message id %q", id)
	}
	if captured.Get("TopicArn") != topicARN || captured.Get("Subject") != "Build FAILURE: api #1" {
		t.Fatalf("unexpected request values %v", captured)
	}
}

func TestPublishSingleAttemptAndServiceError(t *testing.T) {
	isolateAWSEnv(t)
	var requests atomic.Int32
	var captured url.Values
	server := fakeSNS(t, true, &requests, &captured)
	defer server.Close()

	client, err := sns.NewFactory().NewClient(context.Background(), staticOptions(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Publish(context.Background(), notifier.PublishInput{TopicARN: topicARN, Message: "m"})
	if err == nil {
		t.Fatal("expected error")
	}
	var serviceErr *sns.ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code != "AuthorizationError" {
		t.Fatalf("expected AuthorizationError service error, got %v", err)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Fatalf("error leaks the secret: %v", err)
	}
	if got := requests.Load(); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := client.Publish(context.Background(), notifier.PublishInput{TopicARN: topicARN, Message: "m"}); err == nil {
		t.Fatal("expected publish after close to fail")
	}
}

func TestNewClientRequiresCredentialsUnlessAmbient(t *testing.T) {
	isolateAWSEnv(t)
	opts := staticOptions("http://127.0.0.1:1")
	opts.SecretKey = ""
	if _, err := sns.NewFactory().NewClient(context.Background(), opts); err == nil {
		t.Fatal("expected incomplete credentials error")
	}

	opts.UseAmbientCredentials = true
	client, err := sns.NewFactory().NewClient(context.Background(), opts)
	if err != nil {
		t.Fatalf("ambient client: %v", err)
	}
	_ = client.Close()

	opts.Region = ""
	if _, err := sns.NewFactory().NewClient(context.Background(), opts); err == nil {
		t.Fatal("expected region error")
	}
}
