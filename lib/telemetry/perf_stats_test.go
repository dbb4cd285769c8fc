package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestInstrumentPerfStatsStopsOnCancel(t *testing.T) {
	cleanup := SetupForTesting(t, "telemetry-test")
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		// must return immediately, the sampler runs in its own goroutine
		InstrumentPerfStats(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("InstrumentPerfStats blocked the caller")
	}
	cancel()
}
