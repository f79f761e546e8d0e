package sdk

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/brightfish/bluecanary/pkg/config"
	"github.com/brightfish/bluecanary/pkg/sdk/batch"
	"github.com/brightfish/bluecanary/pkg/sdk/endpoint"
	"github.com/brightfish/bluecanary/pkg/sdk/errs"
	"github.com/brightfish/bluecanary/pkg/sdk/levels"
	"github.com/brightfish/bluecanary/pkg/sdk/metrics"
	"github.com/brightfish/bluecanary/pkg/sdk/params"
	"github.com/brightfish/bluecanary/pkg/sdk/request"
	"github.com/brightfish/bluecanary/pkg/sdk/transport"
)

// Config holds the construction-time configuration of a Client. Empty
// fields are absent: URI parts then fall back to their defaults.
type Config struct {
	BaseURI    string `json:"base_uri" mapstructure:"base_uri"`
	APIVersion string `json:"api_version" mapstructure:"api_version"`
	ClientID   string `json:"client_id" mapstructure:"client_id"`
	ClientName string `json:"client_name" mapstructure:"client_name"`
	Counter    string `json:"counter" mapstructure:"counter"`
	UUID       string `json:"uuid" mapstructure:"uuid"`
}

// Params converts the configuration to parameters. Absent fields are left
// out so the endpoint falls back to the previous value, then the default.
func (c Config) Params() params.Params {
	p := params.Params{}
	set := func(key, value string) {
		if value != "" {
			p[key] = value
		}
	}
	set(params.KeyBaseURI, c.BaseURI)
	set(params.KeyAPIVersion, c.APIVersion)
	set(params.KeyClientID, c.ClientID)
	set(params.KeyClientName, c.ClientName)
	set(params.KeyCounter, c.Counter)
	set(params.KeyUUID, c.UUID)
	return p
}

// ErrorPolicy decides what happens to transport failures.
type ErrorPolicy int

const (
	// PropagateErrors returns transport failures to the caller unchanged.
	PropagateErrors ErrorPolicy = iota

	// SuppressErrors logs transport failures and reports success with a nil
	// response. Validation errors are never suppressed.
	SuppressErrors
)

// Option configures a Client.
type Option func(*Client)

// WithTransport sets the transport used to send requests.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithHTTPClient uses an HTTP transport backed by hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.transport = transport.NewHTTP(hc) }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithErrorPolicy sets the transport error policy.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithLevel sets the minimum level dispatched.
func WithLevel(l levels.Level) Option {
	return func(c *Client) { c.minLevel = l }
}

// Client is the Blue Canary client.
//
// A Client owns its pending metrics and endpoint parts. It is not safe for
// concurrent use; give each goroutine its own Client or guard it externally.
type Client struct {
	config    Config
	transport transport.Transport
	logger    *zap.Logger
	policy    ErrorPolicy
	minLevel  levels.Level

	pending *batch.Batch
	builder *request.Builder
}

// New creates a Blue Canary client. The endpoint configuration is only
// validated when an event is sent; New fails on invalid options.
func New(cfg Config, opts ...Option) (*Client, error) {
	pending := batch.New(config.DefaultMetricCapacity)

	c := &Client{
		config:   cfg,
		logger:   zap.NewNop(),
		policy:   PropagateErrors,
		minLevel: levels.Default,
		pending:  pending,
		builder:  request.NewBuilder(cfg.Params(), pending),
	}
	for _, opt := range opts {
		opt(c)
	}
	if !c.minLevel.Valid() {
		return nil, errs.Newf(errs.KindUnknownLevel, "No level is defined for rank %d.", int(c.minLevel))
	}
	if c.policy != PropagateErrors && c.policy != SuppressErrors {
		return nil, fmt.Errorf("unknown error policy %d", int(c.policy))
	}
	if c.transport == nil {
		c.transport = transport.NewHTTP(nil)
	}
	return c, nil
}

// Config returns the construction-time configuration.
func (c *Client) Config() Config {
	return c.config
}

// SetLevel sets the minimum level dispatched. Events less severe than l are
// dropped without building a request. An undefined rank falls back to the
// default level, like an unknown name in SetLevelName.
func (c *Client) SetLevel(l levels.Level) *Client {
	if !l.Valid() {
		c.logger.Debug("unknown level rank, using default",
			zap.Int("rank", int(l)),
			zap.Stringer("default", levels.Default))
		l = levels.Default
	}
	c.minLevel = l
	return c
}

// SetLevelName sets the minimum level by name. Unknown names fall back to
// the default level, so every event is dispatched.
func (c *Client) SetLevelName(name string) *Client {
	l, ok := levels.Parse(name)
	if !ok {
		c.logger.Debug("unknown level name, using default",
			zap.String("level", name),
			zap.Stringer("default", levels.Default))
		l = levels.Default
	}
	c.minLevel = l
	return c
}

// Level returns the minimum level dispatched.
func (c *Client) Level() levels.Level {
	return c.minLevel
}

// Metric adds a metric to the next event. Invalid input is rejected at once.
func (c *Client) Metric(key string, value float64, unit string, typ metrics.Type) error {
	m, err := metrics.New(key, value, unit, typ)
	if err != nil {
		return err
	}
	c.pending.Add(m)
	return nil
}

// AddMetric adds already constructed metrics to the next event.
func (c *Client) AddMetric(ms ...metrics.Metric) *Client {
	for _, m := range ms {
		c.pending.Add(m)
	}
	return c
}

// Metrics returns the metrics waiting for the next event.
func (c *Client) Metrics() []metrics.Metric {
	return c.pending.Metrics()
}

// Method returns the HTTP method the next event will use.
func (c *Client) Method() string {
	return c.builder.Method()
}

// URI returns the event URL as last resolved.
func (c *Client) URI() string {
	return c.builder.Endpoint().URI()
}

// IsUUIDValid reports whether s is a version 4 UUID.
func (c *Client) IsUUIDValid(s string) bool {
	return endpoint.IsUUIDValid(s)
}

// IsCounterNameValid reports whether s is a valid counter name.
func (c *Client) IsCounterNameValid(s string) bool {
	return endpoint.IsCounterNameValid(s)
}

// Parameters filters and casts p the way it would be sent.
func (c *Client) Parameters(p params.Params) params.Params {
	return params.FilterAndCast(p)
}

// prepare resolves the level, applies the threshold and builds the request.
// A nil request with a nil error means the event was filtered out.
func (c *Client) prepare(level levels.Level, message string, p params.Params) (*request.Request, params.Options, error) {
	if level == levels.Debug {
		return nil, nil, errs.New(errs.KindUnsupportedOperation, "This method is currently not supported.")
	}
	if !level.Valid() {
		return nil, nil, errs.Newf(errs.KindUnknownLevel, "No level is defined for rank %d.", int(level))
	}

	if !level.AtLeast(c.minLevel) {
		c.logger.Debug("event below minimum level",
			zap.Stringer("level", level),
			zap.Stringer("min_level", c.minLevel))
		return nil, nil, nil
	}

	call := params.Merge(p, params.Params{
		params.KeyStatusCode:   int(level),
		params.KeyStatusRemark: message,
	})

	req, opts, err := c.builder.Build(call)
	if err != nil {
		return nil, nil, err
	}

	c.logger.Debug("dispatching event",
		zap.Stringer("level", level),
		zap.String("method", req.Method()),
		zap.String("url", req.URL()))
	return req, opts, nil
}

func (c *Client) dispatch(ctx context.Context, level levels.Level, message string, p params.Params) (*transport.Response, error) {
	req, opts, err := c.prepare(level, message, p)
	if err != nil || req == nil {
		return nil, err
	}

	resp, err := c.transport.Send(ctx, req, opts)
	if err != nil {
		return c.handleTransportError(req, resp, err)
	}
	return resp, nil
}

func (c *Client) dispatchAsync(ctx context.Context, level levels.Level, message string, p params.Params) (*transport.Future, error) {
	req, opts, err := c.prepare(level, message, p)
	if err != nil || req == nil {
		return nil, err
	}

	future := c.transport.SendAsync(ctx, req, opts)
	if c.policy == SuppressErrors {
		future = future.WithErrorHandler(func(resp *transport.Response, err error) error {
			_, err = c.handleTransportError(req, resp, err)
			return err
		})
	}
	return future, nil
}

func (c *Client) handleTransportError(req *request.Request, resp *transport.Response, err error) (*transport.Response, error) {
	if c.policy != SuppressErrors {
		return resp, err
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", req.Method()),
		zap.String("url", req.URL()),
	}
	if resp != nil {
		fields = append(fields, zap.Int("status", resp.StatusCode))
	}
	c.logger.Warn("blue canary request failed", fields...)
	return nil, nil
}
