// Command canary reports a single event to a Blue Canary service.
//
//	canary --uuid 5b8c58e9-b2ac-4ae4-9381-dcd4524dd7e7 --counter nightly-backup \
//	    --level warning --message "disk almost full" --metric free=2.5:GB
//
// Every flag can also be set with a CANARY_ environment variable, for example
// CANARY_BASE_URI or CANARY_UUID, or in a YAML file passed with --config.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/brightfish/bluecanary/pkg/config"
	"github.com/brightfish/bluecanary/pkg/sdk"
	"github.com/brightfish/bluecanary/pkg/sdk/metrics"
	"github.com/brightfish/bluecanary/pkg/sdk/params"
	"github.com/brightfish/bluecanary/pkg/sdk/runtime"
	"github.com/brightfish/bluecanary/pkg/sdk/transport"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "canary: %v\n", err)
		}
		os.Exit(1)
	}
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("canary", pflag.ContinueOnError)
	fs.String("config", "", "YAML file with flag defaults")
	fs.String("base-uri", config.DefaultBaseURI, "service base URI")
	fs.String("api-version", config.DefaultAPIVersion, "API version")
	fs.StringP("uuid", "u", "", "application UUID")
	fs.StringP("counter", "n", "", "counter name")
	fs.String("client-id", "", "reporting client id")
	fs.String("client-name", "", "reporting client name")
	fs.StringP("level", "l", "ok", "event level (emergency, alert, critical, error, warning, notice, info, ok)")
	fs.StringP("message", "m", "", "status remark")
	fs.StringArray("metric", nil, "metric as key=value[:unit[:type]], repeatable")
	fs.Bool("runtime", false, "attach Go runtime metrics of this process")
	fs.Duration("timeout", config.DefaultTransportTimeout, "request timeout")
	fs.Bool("async", false, "send asynchronously and wait on the result")
	fs.BoolP("verbose", "v", false, "log request details")
	return fs
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return err
	}
	v.SetEnvPrefix("CANARY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	logger := zap.NewNop()
	if v.GetBool("verbose") {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer logger.Sync()
	}

	client, err := sdk.New(sdk.Config{
		BaseURI:    v.GetString("base-uri"),
		APIVersion: v.GetString("api-version"),
		UUID:       v.GetString("uuid"),
		Counter:    v.GetString("counter"),
		ClientID:   v.GetString("client-id"),
		ClientName: v.GetString("client-name"),
	}, sdk.WithLogger(logger))
	if err != nil {
		return err
	}

	for _, raw := range cast.ToStringSlice(v.Get("metric")) {
		m, err := parseMetric(raw)
		if err != nil {
			return err
		}
		client.AddMetric(m)
	}

	if v.GetBool("runtime") {
		if err := runtime.Attach(client); err != nil {
			return err
		}
	}

	p := params.Params{transport.OptionTimeout: v.GetDuration("timeout")}
	level := v.GetString("level")
	message := v.GetString("message")

	var resp *transport.Response
	if v.GetBool("async") {
		var future *transport.Future
		future, err = client.LogNameAsync(ctx, level, message, p)
		if err != nil {
			return err
		}
		resp, err = future.Wait(ctx)
	} else {
		resp, err = client.LogName(ctx, level, message, p)
	}
	if err != nil {
		return err
	}

	if resp == nil {
		fmt.Fprintln(stdout, "filtered")
		return nil
	}
	fmt.Fprintf(stdout, "%s %s -> %d\n", client.Method(), client.URI(), resp.StatusCode)
	return nil
}

// parseMetric parses key=value[:unit[:type]].
func parseMetric(raw string) (metrics.Metric, error) {
	key, rest, ok := strings.Cut(raw, "=")
	if !ok {
		return metrics.Metric{}, fmt.Errorf("metric %q: expected key=value", raw)
	}

	parts := strings.SplitN(rest, ":", 3)
	value, err := cast.ToFloat64E(parts[0])
	if err != nil {
		return metrics.Metric{}, fmt.Errorf("metric %q: %w", raw, err)
	}

	var unit string
	if len(parts) > 1 {
		unit = parts[1]
	}

	typ := metrics.FloatType
	if len(parts) > 2 {
		typ = metrics.Type(parts[2])
	} else if !strings.ContainsAny(parts[0], ".eE") {
		typ = metrics.IntType
	}

	return metrics.New(key, value, unit, typ)
}
