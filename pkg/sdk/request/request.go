// Package request builds the outbound HTTP request for a Blue Canary event.
package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/brightfish/bluecanary/pkg/sdk/batch"
	"github.com/brightfish/bluecanary/pkg/sdk/endpoint"
	"github.com/brightfish/bluecanary/pkg/sdk/metrics"
	"github.com/brightfish/bluecanary/pkg/sdk/params"
)

// Request is an immutable description of an outbound request.
type Request struct {
	method string
	url    string
	header http.Header
	body   []byte
}

func (r *Request) Method() string { return r.method }
func (r *Request) URL() string    { return r.url }

// Header returns a copy of the request headers.
func (r *Request) Header() http.Header { return r.header.Clone() }

// Body returns a copy of the request body. It is empty for GET requests.
func (r *Request) Body() []byte { return bytes.Clone(r.body) }

// HTTPRequest materializes the descriptor as an *http.Request.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if len(r.body) > 0 {
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// Builder turns per-call parameters into requests. It owns the endpoint
// parts and reads the pending metric batch.
//
// Build consumes the batch: after Build returns, the batch is empty, whether
// or not the build succeeded. A Builder is not safe for concurrent use.
type Builder struct {
	defaults params.Params
	endpoint *endpoint.Builder
	pending  *batch.Batch
}

// NewBuilder returns a Builder using defaults as construction-time
// parameters. The endpoint parts are resolved from defaults right away.
func NewBuilder(defaults params.Params, pending *batch.Batch) *Builder {
	if pending == nil {
		pending = batch.New(0)
	}
	b := &Builder{
		defaults: params.Merge(defaults),
		endpoint: endpoint.New(),
		pending:  pending,
	}
	b.endpoint.SetParts(b.defaults)
	return b
}

// Method returns the method the next request will use: POST when metrics
// are pending, GET otherwise.
func (b *Builder) Method() string {
	if b.pending.Len() > 0 {
		return http.MethodPost
	}
	return http.MethodGet
}

// Endpoint exposes the endpoint builder.
func (b *Builder) Endpoint() *endpoint.Builder {
	return b.endpoint
}

// Build merges the construction-time parameters with call, resolves and
// validates the URL and encodes the payload. It returns the transport
// options found among the merged parameters.
func (b *Builder) Build(call params.Params) (*Request, params.Options, error) {
	merged := params.Merge(b.defaults, call)
	method := b.Method()
	pending := b.pending.Drain()

	if err := b.endpoint.SetParts(merged).Validate(); err != nil {
		return nil, nil, err
	}
	uri := b.endpoint.URI()

	data := params.FilterAndCast(merged)
	header := http.Header{}
	var body []byte

	switch method {
	case http.MethodGet:
		uri += "?" + params.Query(data)
	case http.MethodPost:
		data[params.KeyMetrics] = metrics.SerializeAll(pending)
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal event: %w", err)
		}
		body = raw
		header.Set("Content-Type", "application/json")
	}

	req := &Request{
		method: method,
		url:    uri,
		header: header,
		body:   body,
	}
	return req, params.TransportOptions(merged), nil
}
