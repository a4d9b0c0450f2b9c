package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"icingadb.dev/redisbridge/internal/config"
	"icingadb.dev/redisbridge/internal/logging"
	"icingadb.dev/redisbridge/internal/objects"
	"icingadb.dev/redisbridge/internal/source"
)

func TestNewSourceDefaultSatisfiesContract(t *testing.T) {
	registry, stream := NewSource(config.Default())
	defer stream.Close()

	var _ source.Registry = registry
	var _ source.EventStream = stream

	if types := registry.Types(); len(types) != 0 {
		t.Fatalf("expected no types from the default stub registry, got %v", types)
	}
}

func TestEmptySourceCloseIsIdempotent(t *testing.T) {
	s := newEmptySource()
	s.Close()
	s.Close()
}

// oneHostRegistry stands in for a connected source engine holding a single
// host, so runBridge's full dump has something to write.
type oneHostRegistry struct{ host *objects.Host }

func (r oneHostRegistry) Types() []objects.Type { return []objects.Type{objects.TypeHost} }

func (r oneHostRegistry) ObjectsOf(t objects.Type) []objects.Object {
	if t == objects.TypeHost {
		return []objects.Object{r.host}
	}
	return nil
}

func (r oneHostRegistry) CommandTimeout(string) (float64, bool) { return 0, false }

// TestRunBridgePerformsFullDumpThenShutsDownCleanly drives runBridge end to
// end against an in-process Redis server: connect, full dump, route runtime
// events, then a clean shutdown once its context is cancelled.
func TestRunBridgePerformsFullDumpThenShutsDownCleanly(t *testing.T) {
	mr := miniredis.RunT(t)

	host := objects.NewHost("h1")
	host.Address_ = "10.0.0.1"
	registry := oneHostRegistry{host: host}

	origNewSource := NewSource
	NewSource = func(config.Bridge) (source.Registry, source.EventStream) {
		return registry, newEmptySource()
	}
	t.Cleanup(func() { NewSource = origNewSource })

	bridgeCfg := config.Default()
	bridgeCfg.RedisURL = "redis://" + mr.Addr()
	bridgeCfg.Concurrency = 2
	bridgeCfg.QueueCapacity = 10

	log := logging.New(logging.Config{Level: logging.LevelError}).WithField("component", "test")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runBridge(ctx, bridgeCfg, log) }()

	deadline := time.Now().Add(2 * time.Second)
	for !mr.Exists("icinga:config:host") {
		if time.Now().After(deadline) {
			t.Fatal("expected the full dump to write a host config row before the deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runBridge returned an error after shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runBridge did not return after its context was cancelled")
	}
}
