// Command redisbridge runs the configuration/state replication bridge: it
// loads configuration, connects to Redis, performs an initial full dump of
// the source registry, then routes runtime change events onto the engine
// until terminated.
//
// The source monitoring engine itself is out of scope for this module (see
// §1 of the design notes): redisbridge links against whatever
// source.Registry/source.EventStream implementation the deployment supplies
// via NewSource. The stub below is wired in until a real connector is
// registered.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"icingadb.dev/redisbridge/internal/config"
	"icingadb.dev/redisbridge/internal/events"
	"icingadb.dev/redisbridge/internal/logging"
	"icingadb.dev/redisbridge/internal/objects"
	"icingadb.dev/redisbridge/internal/redisclient"
	"icingadb.dev/redisbridge/internal/replication"
	"icingadb.dev/redisbridge/internal/source"
	"icingadb.dev/redisbridge/internal/workqueue"
	"icingadb.dev/redisbridge/version"
)

const modulePath = "icingadb.dev/redisbridge"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "redisbridge",
	Short: "mirrors a monitoring configuration and its runtime state into Redis",
	Long: `redisbridge is a change-data-capture bridge: it performs a transactional
full dump of a monitoring configuration into Redis, then keeps that view
current as object change events and check results arrive.

Configuration is read from a file (YAML/JSON/TOML), environment variables
prefixed REDISBRIDGE_, and command-line flags, in that order of increasing
precedence.`,
	RunE: run,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the resolved module version and dependency set",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("redisbridge %s\n", version.GetModuleVersion(modulePath))
		for _, dep := range version.GetBuildInfo().Dependencies {
			fmt.Printf("  %s %s\n", dep.Path, dep.Version)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path")
	rootCmd.PersistentFlags().String("redis-url", "", "Redis connection URL")
	rootCmd.PersistentFlags().String("environment", "", "environment name salting shared row ids")
	rootCmd.PersistentFlags().Int("concurrency", 0, "worker count for dump/runtime work queues")
	rootCmd.PersistentFlags().Int("dump-chunk-size", 0, "objects per bulk-dump transaction chunk")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")

	viper.BindPFlag("redis_url", rootCmd.PersistentFlags().Lookup("redis-url"))
	viper.BindPFlag("environment", rootCmd.PersistentFlags().Lookup("environment"))
	viper.BindPFlag("concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))
	viper.BindPFlag("dump_chunk_size", rootCmd.PersistentFlags().Lookup("dump-chunk-size"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	bridgeCfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Flags given explicitly on the command line override what Load resolved
	// from the file and the environment.
	for key, dst := range map[string]*string{"redis_url": &bridgeCfg.RedisURL, "environment": &bridgeCfg.Environment, "log_level": &bridgeCfg.LogLevel, "log_format": &bridgeCfg.LogFormat} {
		if viper.IsSet(key) {
			*dst = viper.GetString(key)
		}
	}
	for key, dst := range map[string]*int{"concurrency": &bridgeCfg.Concurrency, "dump_chunk_size": &bridgeCfg.DumpChunkSize} {
		if viper.IsSet(key) {
			*dst = viper.GetInt(key)
		}
	}
	if err := bridgeCfg.Validate(); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logging.New(logging.Config{
		Level:  logging.Level(bridgeCfg.LogLevel),
		Format: bridgeCfg.LogFormat,
	}).WithField("component", "redisbridge")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return runBridge(ctx, bridgeCfg, log)
}

// runBridge connects to Redis, performs the initial full dump, then routes
// runtime events until ctx is cancelled, at which point it drains the
// runtime queue and returns. Split out from run so tests can drive it
// against an in-process Redis server with a context they control, rather
// than one tied to OS signals.
func runBridge(ctx context.Context, bridgeCfg config.Bridge, log *logrus.Entry) error {
	client, err := redisclient.Connect(ctx, bridgeCfg.RedisURL, config.RedisDialTimeout)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer client.Close()

	registry, stream := NewSource(bridgeCfg)

	engine := replication.New(client, registry, replication.Options{
		Environment: bridgeCfg.Environment,
		Concurrency: bridgeCfg.Concurrency,
		ChunkSize:   bridgeCfg.DumpChunkSize,
		FlushEvery:  bridgeCfg.FlushEvery,
	}, log)

	log.Info("starting full configuration dump")
	start := time.Now()
	if err := engine.FullDump(ctx); err != nil {
		return fmt.Errorf("full dump: %w", err)
	}
	log.WithField("duration", time.Since(start)).Info("full dump complete, routing runtime events")

	runtimeQueue := workqueue.New(ctx, "runtime-events", bridgeCfg.QueueCapacity, bridgeCfg.Concurrency, log)
	router := events.New(ctx, stream, engine, runtimeQueue, log)

	<-ctx.Done()
	log.Info("shutdown signal received, draining runtime queue")
	router.Close()
	if err := runtimeQueue.Join(); err != nil {
		log.WithError(err).Warn("runtime queue drained with outstanding errors")
	}
	return nil
}

// emptyRegistry and emptySource back the connector this deployment has not
// yet wired in: a full dump against it is a correct, empty no-op, and its
// event stream never fires. Replace NewSource with a real connector once
// one is available.
type emptyRegistry struct{}

func (emptyRegistry) Types() []objects.Type                       { return nil }
func (emptyRegistry) ObjectsOf(objects.Type) []objects.Object     { return nil }
func (emptyRegistry) CommandTimeout(string) (float64, bool)       { return 0, false }

type emptySource struct{ done chan struct{} }

func newEmptySource() *emptySource { return &emptySource{done: make(chan struct{})} }

func (*emptySource) StateChanges() <-chan source.StateEvent            { return nil }
func (*emptySource) AcknowledgementsCleared() <-chan source.StateEvent { return nil }
func (*emptySource) ActiveOrVersionChanges() <-chan source.ChangeEvent { return nil }
func (*emptySource) Downtimes() <-chan source.DowntimeEvent            { return nil }
func (s *emptySource) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// NewSource resolves the source registry and event stream for cfg. It is a
// package-level variable so a deployment-specific connector can override it
// at link time without touching the rest of main.
var NewSource = func(cfg config.Bridge) (source.Registry, source.EventStream) {
	return emptyRegistry{}, newEmptySource()
}
