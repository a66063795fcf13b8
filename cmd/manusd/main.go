// Command manusd runs the workflow automation backend: it seeds the skill
// catalog, wires a workflow store (in-memory by default, MongoDB when
// configured), optionally publishes execution updates to Pulse streams over
// Redis, and serves the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"goa.design/clue/health"
	"goa.design/clue/log"
	"gopkg.in/yaml.v3"

	"github.com/sadadonline17-oss/ai-manus-unified/api"
	"github.com/sadadonline17-oss/ai-manus-unified/features/store/inmem"
	storemongo "github.com/sadadonline17-oss/ai-manus-unified/features/store/mongo"
	clientsmongo "github.com/sadadonline17-oss/ai-manus-unified/features/store/mongo/clients/mongo"
	streampulse "github.com/sadadonline17-oss/ai-manus-unified/features/stream/pulse"
	clientspulse "github.com/sadadonline17-oss/ai-manus-unified/features/stream/pulse/clients/pulse"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/skill"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/skill/catalog"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/stream"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/telemetry"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/workflow"
	"github.com/sadadonline17-oss/ai-manus-unified/runtime/workflow/runner"
)

// Config is the YAML server configuration. Every field has a working
// default so the server runs with no config file at all.
type Config struct {
	HTTPAddr         string        `yaml:"http_addr"`
	MaxParallelNodes int           `yaml:"max_parallel_nodes"`
	DefaultTimeout   time.Duration `yaml:"default_timeout"`

	Mongo struct {
		URI        string `yaml:"uri"`
		Database   string `yaml:"database"`
		Collection string `yaml:"collection"`
	} `yaml:"mongo"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
}

func main() {
	var (
		httpAddrF = flag.String("http-addr", ":8000", "HTTP listen address")
		configF   = flag.String("config", "", "Path to YAML configuration file")
		dbgF      = flag.Bool("debug", false, "Enable debug logs")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	if err := run(ctx, *httpAddrF, *configF); err != nil {
		log.Fatal(ctx, err)
	}
}

func run(ctx context.Context, httpAddr, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = httpAddr
	}

	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()
	tracer := telemetry.NewClueTracer()

	registry := skill.NewRegistry()
	catalog.Register(ctx, registry)

	var (
		store   workflow.Store
		pingers []health.Pinger
	)
	if cfg.Mongo.URI != "" {
		mongoClient, err := mongodriver.Connect(ctx, mongooptions.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return fmt.Errorf("connect to mongo: %w", err)
		}
		defer func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				log.Errorf(ctx, err, "disconnect mongo")
			}
		}()
		client, err := clientsmongo.New(clientsmongo.Options{
			Client:     mongoClient,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
		if err != nil {
			return fmt.Errorf("create mongo client: %w", err)
		}
		mongoStore, err := storemongo.NewStore(client)
		if err != nil {
			return fmt.Errorf("create mongo store: %w", err)
		}
		store = mongoStore
		pingers = append(pingers, client)
		log.Print(ctx, log.KV{K: "msg", V: "using mongo workflow store"}, log.KV{K: "database", V: cfg.Mongo.Database})
	} else {
		store = inmem.New()
		log.Print(ctx, log.KV{K: "msg", V: "using in-memory workflow store"})
	}

	var sink stream.Sink
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Errorf(ctx, err, "close redis")
			}
		}()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		pulseClient, err := clientspulse.New(clientspulse.Options{Redis: rdb})
		if err != nil {
			return fmt.Errorf("create pulse client: %w", err)
		}
		pulseSink, err := streampulse.NewSink(streampulse.Options{Client: pulseClient})
		if err != nil {
			return fmt.Errorf("create pulse sink: %w", err)
		}
		sink = pulseSink
		log.Print(ctx, log.KV{K: "msg", V: "publishing execution updates to pulse"}, log.KV{K: "redis", V: cfg.Redis.Addr})
	}

	runnerOpts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithMetrics(metrics),
		runner.WithTracer(tracer),
	}
	if cfg.MaxParallelNodes > 0 {
		runnerOpts = append(runnerOpts, runner.WithMaxParallelNodes(cfg.MaxParallelNodes))
	}
	if cfg.DefaultTimeout > 0 {
		runnerOpts = append(runnerOpts, runner.WithDefaultTimeout(cfg.DefaultTimeout))
	}
	if sink != nil {
		runnerOpts = append(runnerOpts, runner.WithSink(sink))
	}
	r := runner.New(registry, runnerOpts...)
	manager := runner.NewManager(store, r, logger)

	svc, err := api.New(api.Options{
		Manager:  manager,
		Registry: registry,
		Logger:   logger,
		Pingers:  pingers,
	})
	if err != nil {
		return fmt.Errorf("create api service: %w", err)
	}

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: svc.Handler(),
	}

	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()
	go func() {
		log.Print(ctx, log.KV{K: "msg", V: "starting http server"}, log.KV{K: "addr", V: cfg.HTTPAddr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	log.Printf(ctx, "exiting (%v)", <-errc)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	log.Printf(ctx, "exited")
	return nil
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
