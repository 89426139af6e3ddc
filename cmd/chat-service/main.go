package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"

	"contextrelay/cmd/chat-service/internal/conf"
	"contextrelay/cmd/chat-service/internal/server"
	"contextrelay/pkg/config"
	"contextrelay/pkg/logger"
	"contextrelay/pkg/observability"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	Name     = "chat-service"
	Version  = "v1.0.0"
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "", "config path, eg: -conf configs/chat-service.yaml")
}

func newApp(c *conf.Config, logger log.Logger, hs *server.HTTPServer) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Logger(logger),
		kratos.StopTimeout(c.Server.ShutdownTimeout),
		kratos.Server(hs),
	)
}

func main() {
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		stdlog.Printf("⚠️  failed to load .env: %v", err)
	}

	configPath := flagconf
	if configPath == "" {
		configPath = config.GetEnv("CONFIG_PATH", "")
	}

	cfgManager := config.NewManager()
	if err := cfgManager.LoadConfig(configPath, Name); err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}
	defer cfgManager.Close()

	cfg, err := conf.Load(cfgManager)
	if err != nil {
		stdlog.Fatalf("Failed to parse config: %v", err)
	}

	zl, err := logger.New(logger.Config{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
		File:   cfg.Observability.LogFile,
	})
	if err != nil {
		stdlog.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	l := logger.With(zl, Name, Version)
	helper := log.NewHelper(l)

	shutdownTracing, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Observability.Environment,
		Protocol:       cfg.Observability.TraceProto,
		Endpoint:       cfg.Observability.TraceAddr,
		SamplingRate:   cfg.Observability.SampleRate,
		Enabled:        cfg.Observability.TraceEnable,
	})
	if err != nil {
		helper.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			helper.Errorf("failed to shutdown tracing: %v", err)
		}
	}()

	cfgManager.OnChange(func() {
		helper.Warnf("configuration changed in %s, restart %s to apply", cfgManager.Source(), Name)
	})

	app, cleanup, err := wireApp(cfg, l)
	if err != nil {
		helper.Fatalf("failed to init app: %v", err)
	}
	defer cleanup()

	helper.Infow("msg", "service starting",
		"name", Name,
		"version", Version,
		"config_mode", cfgManager.GetMode(),
		"addr", cfg.Server.Addr,
	)

	if err := app.Run(); err != nil {
		helper.Errorf("app exited: %v", err)
	}
}
