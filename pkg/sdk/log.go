package sdk

import (
	"context"

	"github.com/brightfish/bluecanary/pkg/sdk/errs"
	"github.com/brightfish/bluecanary/pkg/sdk/levels"
	"github.com/brightfish/bluecanary/pkg/sdk/params"
	"github.com/brightfish/bluecanary/pkg/sdk/transport"
)

// Log sends an event with the given level. Events less severe than the
// client's level are dropped and return a nil response and a nil error.
func (c *Client) Log(ctx context.Context, level levels.Level, message string, p params.Params) (*transport.Response, error) {
	return c.dispatch(ctx, level, message, p)
}

// LogName is like Log but takes the level by name.
func (c *Client) LogName(ctx context.Context, name string, message string, p params.Params) (*transport.Response, error) {
	level, err := parseLevel(name)
	if err != nil {
		return nil, err
	}
	return c.dispatch(ctx, level, message, p)
}

// LogAsync is like Log but does not wait for the response. Errors found
// while building the request are returned immediately.
func (c *Client) LogAsync(ctx context.Context, level levels.Level, message string, p params.Params) (*transport.Future, error) {
	return c.dispatchAsync(ctx, level, message, p)
}

// LogNameAsync is like LogName but does not wait for the response.
func (c *Client) LogNameAsync(ctx context.Context, name string, message string, p params.Params) (*transport.Future, error) {
	level, err := parseLevel(name)
	if err != nil {
		return nil, err
	}
	return c.dispatchAsync(ctx, level, message, p)
}

func parseLevel(name string) (levels.Level, error) {
	level, ok := levels.Parse(name)
	if !ok {
		return 0, errs.Newf(errs.KindUnknownLevel, "No level is defined for %q.", name)
	}
	return level, nil
}

// Emergency reports that the system is unusable.
func (c *Client) Emergency(ctx context.Context, message string, p params.Params) (*transport.Response, error) {
	return c.dispatch(ctx, levels.Emergency, message, p)
}

// Alert reports that action must be taken immediately.
func (c *Client) Alert(ctx context.Context, message string, p params.Params) (*transport.Response, error) {
	return c.dispatch(ctx, levels.Alert, message, p)
}

// Critical reports a critical condition.
func (c *Client) Critical(ctx context.Context, message string, p params.Params) (*transport.Response, error) {
	return c.dispatch(ctx, levels.Critical, message, p)
}

// Error reports a runtime error that does not require immediate action.
func (c *Client) Error(ctx context.Context, message string, p params.Params) (*transport.Response, error) {
	return c.dispatch(ctx, levels.Error, message, p)
}

// Warning reports an exceptional occurrence that is not an error.
func (c *Client) Warning(ctx context.Context, message string, p params.Params) (*transport.Response, error) {
	return c.dispatch(ctx, levels.Warning, message, p)
}

// Notice reports a normal but significant event.
func (c *Client) Notice(ctx context.Context, message string, p params.Params) (*transport.Response, error) {
	return c.dispatch(ctx, levels.Notice, message, p)
}

// Info reports an interesting event.
func (c *Client) Info(ctx context.Context, message string, p params.Params) (*transport.Response, error) {
	return c.dispatch(ctx, levels.Info, message, p)
}

// Ok reports that everything is fine.
func (c *Client) Ok(ctx context.Context, message string, p params.Params) (*transport.Response, error) {
	return c.dispatch(ctx, levels.Ok, message, p)
}

// Debug is not supported and always fails with ErrUnsupportedOperation.
func (c *Client) Debug(ctx context.Context, message string, p params.Params) (*transport.Response, error) {
	return c.dispatch(ctx, levels.Debug, message, p)
}

// EmergencyAsync is the asynchronous form of Emergency.
func (c *Client) EmergencyAsync(ctx context.Context, message string, p params.Params) (*transport.Future, error) {
	return c.dispatchAsync(ctx, levels.Emergency, message, p)
}

// AlertAsync is the asynchronous form of Alert.
func (c *Client) AlertAsync(ctx context.Context, message string, p params.Params) (*transport.Future, error) {
	return c.dispatchAsync(ctx, levels.Alert, message, p)
}

// CriticalAsync is the asynchronous form of Critical.
func (c *Client) CriticalAsync(ctx context.Context, message string, p params.Params) (*transport.Future, error) {
	return c.dispatchAsync(ctx, levels.Critical, message, p)
}

// ErrorAsync is the asynchronous form of Error.
func (c *Client) ErrorAsync(ctx context.Context, message string, p params.Params) (*transport.Future, error) {
	return c.dispatchAsync(ctx, levels.Error, message, p)
}

// WarningAsync is the asynchronous form of Warning.
func (c *Client) WarningAsync(ctx context.Context, message string, p params.Params) (*transport.Future, error) {
	return c.dispatchAsync(ctx, levels.Warning, message, p)
}

// NoticeAsync is the asynchronous form of Notice.
func (c *Client) NoticeAsync(ctx context.Context, message string, p params.Params) (*transport.Future, error) {
	return c.dispatchAsync(ctx, levels.Notice, message, p)
}

// InfoAsync is the asynchronous form of Info.
func (c *Client) InfoAsync(ctx context.Context, message string, p params.Params) (*transport.Future, error) {
	return c.dispatchAsync(ctx, levels.Info, message, p)
}

// OkAsync is the asynchronous form of Ok.
func (c *Client) OkAsync(ctx context.Context, message string, p params.Params) (*transport.Future, error) {
	return c.dispatchAsync(ctx, levels.Ok, message, p)
}

// DebugAsync always fails with ErrUnsupportedOperation.
func (c *Client) DebugAsync(ctx context.Context, message string, p params.Params) (*transport.Future, error) {
	return c.dispatchAsync(ctx, levels.Debug, message, p)
}
