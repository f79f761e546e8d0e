/*
Package sdk provides the Blue Canary client library for reporting events and
metrics from Go applications.

# Quick Start

	client, err := sdk.New(sdk.Config{
	    BaseURI:    "https://canary.example.com",
	    UUID:       "8c2c6c4e-6f2a-4a4e-9b1e-7d7a3f0b2c11",
	    Counter:    "nightly-backup",
	    ClientID:   "backup-01",
	    ClientName: "backup",
	})
	if err != nil {
	    log.Fatal(err)
	}

	// Reported as GET <base>/api/v1/event/<uuid>/<counter>?status_code=0&...
	client.Ok(ctx, "backup finished", nil)

# Levels

Every event carries a severity, sent as status_code:

	emergency  7
	alert      6
	critical   5
	error      4
	warning    3
	notice     2
	info       1
	ok         0

Events below the client's level are dropped without a request:

	client.SetLevelName("warning")
	client.Info(ctx, "ignored", nil)   // nil, nil
	client.Error(ctx, "sent", nil)

debug is reserved; Debug always fails with errs.ErrUnsupportedOperation.
As a threshold it orders below ok, so SetLevelName("debug") dispatches every
event.

# Metrics

Metrics are collected on the client and attached to the next event, which is
then sent as a JSON POST. The pending metrics are cleared whenever a request
is built, even if building fails.

	client.Metric("rows", 1200, "", metrics.IntType)
	client.Metric("elapsed", 12.5, "s", metrics.FloatType)
	client.Notice(ctx, "import done", nil)

# Overrides

Per-call parameters override the configuration for that call. URI parts
(base_uri, api_version, uuid, counter) that neither the call nor the Config
sets fall back to the value resolved by the previous call, then to the
defaults.

	client.Ok(ctx, "other job", params.Params{"counter": "other-job"})

Keys that are neither event data nor configuration are handed to the
transport, for example "timeout" and "headers" for the HTTP transport.

# Errors

Validation errors wrap the sentinels in package errs and are always
returned. Transport errors are returned as well unless the client was
created with WithErrorPolicy(SuppressErrors), in which case they are logged
and the call reports a nil response.

# Async

Every severity has an Async variant that returns a *transport.Future:

	f, err := client.ErrorAsync(ctx, "queue stalled", nil)
	if err != nil {
	    return err // invalid configuration
	}
	resp, err := f.Wait(ctx)
*/
package sdk
