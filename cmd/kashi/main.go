package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"
	log "log/slog"

	"kashi/internal/config"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	os.Exit(run())
}

func run() int {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address, empty for a direct connection")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	addr := cli.String("addr", ":5000", "Web chat listen address, empty to disable")
	voice := cli.Bool("voice", true, "Listen on the microphone")
	dataDir := cli.String("data", "", "Data directory, overrides DATA_DIR")
	socket := cli.String("socket", "", "Control socket path")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		return 1
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
		if os.Getenv("GUI_FILES_DIR") == "" {
			cfg.GuiFilesDir = filepath.Join(*dataDir, "gui")
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Error("Invalid config", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx, cfg, options{
		proxy:  *proxyAddr,
		addr:   *addr,
		voice:  *voice,
		socket: *socket,
	})
	if err != nil {
		log.Error("Boot up failed", "err", err)
		return 1
	}
	defer app.Close()

	log.Info("Boot up - successful", "assistant", cfg.AssistantName, "voice", *voice, "addr", *addr)

	if err := app.Run(ctx); err != nil {
		log.Error("Stopped with error", "err", err)
		return 1
	}

	log.Info("Bye")
	return 0
}
