// Package topic resolves SNS topic ARNs into the regional API endpoint that
// serves them. Resolution is a pure string transformation; no lookups happen.
package topic

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmpty is returned for blank identifiers.
	ErrEmpty = errors.New("topic identifier is empty")
	// ErrMalformed is returned for identifiers that are not SNS ARNs.
	ErrMalformed = errors.New("topic identifier is not an sns arn")
)

const minARNFields = 5

// Resolved is a topic ARN together with the endpoint derived from it.
type Resolved struct {
	ARN      string
	Region   string
	Endpoint string
}

// URL returns the https base URL of the endpoint.
func (r Resolved) URL() string {
	return "https://" + r.Endpoint
}

// Resolve parses arn:<partition>:sns:<region>:<account>:<name> and derives the
// endpoint host from the region. China regions use the amazonaws.com.cn domain.
func Resolve(arn string) (Resolved, error) {
	arn = strings.TrimSpace(arn)
	if arn == "" {
		return Resolved{}, ErrEmpty
	}
	parts := strings.Split(arn, ":")
	if len(parts) < minARNFields || parts[0] != "arn" || parts[2] != "sns" {
		return Resolved{}, fmt.Errorf("%w: %q", ErrMalformed, arn)
	}
	region := parts[3]
	if region == "" {
		return Resolved{}, fmt.Errorf("%w: missing region in %q", ErrMalformed, arn)
	}
	return Resolved{
		ARN:      arn,
		Region:   region,
		Endpoint: Endpoint(region),
	}, nil
}

// Endpoint returns the SNS API host for a region.
func Endpoint(region string) string {
	if strings.HasPrefix(region, "cn-") {
		return "sns." + region + ".amazonaws.com.cn"
	}
	return "sns." + region + ".amazonaws.com"
}
