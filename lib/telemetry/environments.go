package telemetry

import (
	"caseharvest/lib/configutil"
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/lmittmann/tint"
)

// InitSlog installs the default slog handler for the process. Verbose
// mode drops to debug level with full timestamps, otherwise a compact
// colored handler is used.
func InitSlog(verbose bool) {
	level := slog.LevelInfo
	timeFormat := time.Kitchen
	if verbose {
		level = slog.LevelDebug
		timeFormat = time.TimeOnly
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: timeFormat,
	}))
	slog.SetDefault(logger)
}

// searches up the filesystem from the cwd to find a file called
// telemetry.json5, once found it will then be used as a config to set up
// the otlp exporters. A missing config file is not an error, it just
// means telemetry stays off.
func SetupFromEnv(ctx context.Context, serviceName string) (Telemetry, error) {
	c, err := configutil.Search[config]("telemetry.json5")
	if os.IsNotExist(err) {
		slog.Debug("no telemetry.json5 found, telemetry disabled")
		return Telemetry{}, nil
	}
	if err != nil {
		return Telemetry{}, err
	}
	return Setup(ctx, serviceName, c)
}

var setupTestEnvironments = map[string]bool{}

// sets up telemetry in a testing environment, ensuring that it isn't
// set up more than once
func SetupForTesting(t testing.TB, serviceName string) func() {
	if setupTestEnvironments[serviceName] {
		return func() {}
	}
	setupTestEnvironments[serviceName] = true

	InitSlog(true)
	tel, err := SetupFromEnv(context.Background(), serviceName)
	if err != nil {
		t.Fatal(err)
	}
	return func() {
		err := tel.Shutdown(context.Background())
		if err != nil {
			t.Fatal(err)
		}
	}
}
