// Package sns publishes notifications through the AWS SNS API.
package sns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awssns "github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"

	"snsnotify/internal/notifier"
)

// publishAPI is the slice of the SNS client this package uses.
type publishAPI interface {
	Publish(ctx context.Context, params *awssns.PublishInput, optFns ...func(*awssns.Options)) (*awssns.PublishOutput, error)
}

// Factory builds one SNS client per dispatch. Each client gets its own HTTP
// transport so Close can release its connections.
type Factory struct {
	extraLoadOptions []func(*awsconfig.LoadOptions) error
}

// NewFactory returns a factory. extra is appended to the options passed to
// config.LoadDefaultConfig.
func NewFactory(extra ...func(*awsconfig.LoadOptions) error) *Factory {
	return &Factory{extraLoadOptions: extra}
}

// NewClient implements notifier.ClientFactory.
func (f *Factory) NewClient(ctx context.Context, opts notifier.ClientOptions) (notifier.Client, error) {
	if strings.TrimSpace(opts.Region) == "" {
		return nil, errors.New("sns client: region is required")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	httpClient := &http.Client{Transport: transport}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if !opts.UseAmbientCredentials {
		if strings.TrimSpace(opts.AccessKey) == "" || opts.SecretKey.IsZero() {
			return nil, errors.New("sns client: static credentials are incomplete")
		}
		provider := credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey.Reveal(), "")
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(provider))
	}
	loadOptions = append(loadOptions, f.extraLoadOptions...)

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		transport.CloseIdleConnections()
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	api := awssns.NewFromConfig(cfg, func(o *awssns.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &Client{api: api, transport: transport}, nil
}

// Client is a single-use SNS publisher.
type Client struct {
	api       publishAPI
	transport *http.Transport
	closed    bool
}

// Publish sends one message. Service rejections are reported as
// "<Code>: <message>".
func (c *Client) Publish(ctx context.Context, in notifier.PublishInput) (string, error) {
	if c.closed {
		return "", errors.New("sns client: publish after close")
	}
	input := &awssns.PublishInput{
		TopicArn: aws.String(in.TopicARN),
		Message:  aws.String(in.Message),
	}
	if in.Subject != "" {
		input.Subject = aws.String(in.Subject)
	}
	out, err := c.api.Publish(ctx, input)
	if err != nil {
		return "", describe(err)
	}
	return aws.ToString(out.MessageId), nil
}

// Close releases idle connections held by the client's transport.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}

// ServiceError is a rejection reported by the SNS API.
type ServiceError struct {
	Code    string
	Message string
	err     error
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func (e *ServiceError) Unwrap() error { return e.err }

func describe(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &ServiceError{Code: apiErr.ErrorCode(), Message: apiErr.ErrorMessage(), err: err}
	}
	return err
}
