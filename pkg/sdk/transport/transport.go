package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brightfish/bluecanary/pkg/config"
	"github.com/brightfish/bluecanary/pkg/sdk/params"
	"github.com/brightfish/bluecanary/pkg/sdk/request"
	"github.com/spf13/cast"
)

// Option keys understood by HTTPTransport.
const (
	OptionTimeout = "timeout"
	OptionHeaders = "headers"
)

// Transport sends built requests to the Blue Canary service.
type Transport interface {
	// Send blocks until a response or an error is available.
	Send(ctx context.Context, req *request.Request, opts params.Options) (*Response, error)

	// SendAsync returns immediately; the Future resolves with the outcome.
	SendAsync(ctx context.Context, req *request.Request, opts params.Options) *Future
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// HTTPTransport implements Transport using net/http.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTP creates a new HTTP transport. A nil client gets a default one with
// a 10 second timeout.
func NewHTTP(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{
			Timeout: config.DefaultTransportTimeout,
		}
	}
	return &HTTPTransport{client: client}
}

// Send sends the request. Non-2xx responses are returned together with an
// error.
func (t *HTTPTransport) Send(ctx context.Context, req *request.Request, opts params.Options) (*Response, error) {
	timeout, err := timeoutOption(opts)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := req.HTTPRequest(ctx)
	if err != nil {
		return nil, err
	}

	headers, err := headersOption(opts)
	if err != nil {
		return nil, err
	}
	for k, vs := range headers {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return out, nil
}

// SendAsync runs Send on its own goroutine.
func (t *HTTPTransport) SendAsync(ctx context.Context, req *request.Request, opts params.Options) *Future {
	f := NewFuture()
	go func() {
		f.Resolve(t.Send(ctx, req, opts))
	}()
	return f
}

// timeoutOption reads the timeout option: a time.Duration, a number of
// seconds, or a duration string such as "1.5s".
func timeoutOption(opts params.Options) (time.Duration, error) {
	v, ok := opts[OptionTimeout]
	if !ok || v == nil {
		return 0, nil
	}

	switch t := v.(type) {
	case time.Duration:
		return t, nil
	case string:
		d, err := time.ParseDuration(t)
		if err == nil {
			return d, nil
		}
	}

	secs, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout option %v: %w", v, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func headersOption(opts params.Options) (http.Header, error) {
	v, ok := opts[OptionHeaders]
	if !ok || v == nil {
		return nil, nil
	}

	switch t := v.(type) {
	case http.Header:
		return t, nil
	case map[string][]string:
		return http.Header(t), nil
	}

	m, err := cast.ToStringMapStringE(v)
	if err != nil {
		return nil, fmt.Errorf("invalid headers option: %w", err)
	}
	h := make(http.Header, len(m))
	for k, val := range m {
		h.Set(k, val)
	}
	return h, nil
}
