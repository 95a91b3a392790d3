package notifier

import (
	"context"

	"snsnotify/internal/config"
)

// ClientOptions binds a messaging client to one endpoint and credential
// source.
type ClientOptions struct {
	Region string
	// Endpoint is the base URL of the API, e.g. https://sns.us-west-2.amazonaws.com.
	Endpoint              string
	AccessKey             string
	SecretKey             config.Secret
	UseAmbientCredentials bool
}

// PublishInput is one message for one topic.
type PublishInput struct {
	TopicARN string
	Subject  string
	Message  string
}

// Client publishes messages. Close releases its resources and is called
// exactly once by the dispatcher.
type Client interface {
	Publish(ctx context.Context, in PublishInput) (messageID string, err error)
	Close() error
}

// ClientFactory builds a fresh Client per dispatch.
type ClientFactory interface {
	NewClient(ctx context.Context, opts ClientOptions) (Client, error)
}

// ClientFactoryFunc adapts a function to ClientFactory.
type ClientFactoryFunc func(ctx context.Context, opts ClientOptions) (Client, error)

// NewClient implements ClientFactory.
func (f ClientFactoryFunc) NewClient(ctx context.Context, opts ClientOptions) (Client, error) {
	return f(ctx, opts)
}
