// Command gostt-translate is a push-to-talk voice translator. Hold the
// hotkey, speak, release: the recording is transcribed and translated by
// the translation service and the translation is spoken back, optionally
// in a saved accent.
//
// Usage:
//
//	gostt-translate [--config path] [run]
//	gostt-translate languages
//	gostt-translate accents list|select <id>|clear|delete <id>|record <name> [--lang code] [--seconds n]
//	gostt-translate init
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/chaz8081/gostt-translate/internal/accent"
	"github.com/chaz8081/gostt-translate/internal/api"
	"github.com/chaz8081/gostt-translate/internal/auth"
	"github.com/chaz8081/gostt-translate/internal/config"
	"github.com/chaz8081/gostt-translate/internal/lang"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/gostt-translate/config.yaml)")
	flag.Usage = usage
	flag.Parse()

	cmd, args := "run", flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "languages":
		printLanguages()
		return
	case "init":
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("init: %v", err)
		}
		if path == "" {
			log.Printf("Config already exists at %s", config.DefaultConfigPath())
			return
		}
		log.Printf("Wrote default config to %s", path)
		return
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.LoadEnv(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	switch cmd {
	case "run":
		err = run(cfg, logger)
	case "accents":
		err = runAccents(cfg, logger, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "Usage: gostt-translate [--config path] [command]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  run                      push-to-talk translator (default)")
	fmt.Fprintln(out, "  languages                list supported language codes")
	fmt.Fprintln(out, "  accents list             list saved accents")
	fmt.Fprintln(out, "  accents select <id>      use an accent for synthesis")
	fmt.Fprintln(out, "  accents clear            use the default voice")
	fmt.Fprintln(out, "  accents delete <id>      delete a saved accent")
	fmt.Fprintln(out, "  accents record <name>    record and save a new accent")
	fmt.Fprintln(out, "  init                     write a default config file")
	fmt.Fprintln(out)
	flag.PrintDefaults()
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// services are the remote-facing pieces shared by all commands.
type services struct {
	client   *api.Client
	creds    auth.Provider
	registry *accent.Registry
}

func newServices(cfg *config.Config, logger *slog.Logger) (*services, error) {
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, err
	}

	client, err := api.New(cfg.Server.BaseURL, api.Options{
		Logger:            logger,
		RequestTimeout:    cfg.Server.RequestTimeout,
		TranslateTimeout:  cfg.Server.TranslateTimeout,
		SynthesizeTimeout: cfg.Server.SynthesizeTimeout,
	})
	if err != nil {
		return nil, err
	}

	var creds auth.Provider
	if cfg.Auth.CallerID == "" && cfg.Auth.ResolveCaller {
		creds = auth.NewMeResolver(cfg.Auth.Token, client)
	} else {
		creds = auth.NewStatic(cfg.Auth.Token, cfg.Auth.CallerID)
	}

	selection := accent.SelectionFile{Path: filepath.Join(config.DefaultConfigDir(), "accent.yaml")}
	registry := accent.NewRegistry(accent.NewHTTPStore(client, creds), selection, logger)

	return &services{client: client, creds: creds, registry: registry}, nil
}

func printLanguages() {
	for _, l := range lang.Catalog() {
		fmt.Printf("  %-10s %s\n", l.Code, l.Label)
	}
}
