package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the GitHub REST API root
	DefaultBaseURL = "https://api.github.com/"

	// DefaultTimeout bounds every HTTP call unless overridden
	DefaultTimeout = 30 * time.Second
)

type options struct {
	baseURL    string
	graphqlURL string
	transport  http.RoundTripper
	timeout    time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Client or an AppTokenProvider
type Option func(*options)

// WithBaseURL points the client at a different API root, e.g. GitHub Enterprise or a test server
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithGraphQLURL overrides the GraphQL endpoint, which otherwise is "<base>/graphql"
func WithGraphQLURL(graphqlURL string) Option {
	return func(o *options) {
		o.graphqlURL = graphqlURL
	}
}

// WithTransport sets the transport used to send every request
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// WithTimeout sets the per-request HTTP timeout
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithClock replaces time.Now for token expiry checks
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger used for token lifecycle events
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{
		baseURL:   DefaultBaseURL,
		transport: http.DefaultTransport,
		timeout:   DefaultTimeout,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// parseBaseURL parses an API root, adding the trailing slash go-github requires
func parseBaseURL(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", raw)
	}
	return u, nil
}
