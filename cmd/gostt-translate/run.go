package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chaz8081/gostt-translate/internal/audio"
	"github.com/chaz8081/gostt-translate/internal/config"
	"github.com/chaz8081/gostt-translate/internal/hotkey"
	"github.com/chaz8081/gostt-translate/internal/inject"
	"github.com/chaz8081/gostt-translate/internal/lang"
	"github.com/chaz8081/gostt-translate/internal/permission"
	"github.com/chaz8081/gostt-translate/internal/pipeline"
	"github.com/chaz8081/gostt-translate/internal/playback"
	"github.com/chaz8081/gostt-translate/internal/recording"
)

// run wires the pipeline and serves hotkey and console commands until
// interrupted.
func run(cfg *config.Config, logger *slog.Logger) error {
	svc, err := newServices(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.registry.Refresh(ctx); err != nil {
		log.Printf("Could not load saved accents: %v", err)
	}

	// Initialize audio capture
	log.Println("Initializing audio recorder...")
	rec, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels)
	if err != nil {
		return fmt.Errorf("initializing recorder: %w", err)
	}
	defer rec.Close()
	recorder := recording.NewManager(rec, recording.NewOSFS(cfg.RecordingDir()), logger)

	gate := permission.NewProbeGate(audio.CaptureProbe{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
	}, cfg.Permission.MaxPrompts, logger)

	// Initialize audio output
	speaker, err := audio.NewSpeaker()
	if err != nil {
		return fmt.Errorf("initializing speaker: %w", err)
	}
	defer speaker.Close()

	player := playback.NewPlayer(
		&playback.Stream{Resolver: svc.client, Output: speaker, Logger: logger},
		&playback.Polled{
			Resolver:     svc.client,
			Output:       speaker,
			CacheDir:     cfg.Playback.CacheDir,
			PollInterval: cfg.Playback.PollInterval,
			Logger:       logger,
		},
		logger,
	)

	opts := pipeline.Options{
		Gate:        gate,
		Recorder:    recorder,
		Translator:  svc.client,
		Synthesizer: svc.client,
		Accents:     svc.registry,
		Player:      player,
		Credentials: svc.creds,
		Pair:        cfg.Pair(),
		Autoplay:    cfg.Playback.Autoplay,
		KeepFiles:   cfg.Recording.KeepFiles,
		Logger:      logger,
	}
	if cfg.Output.Method != inject.MethodNone {
		opts.Sink = inject.NewInjector(cfg.Output.Method)
	}

	orch, err := pipeline.New(opts)
	if err != nil {
		return err
	}
	go func() {
		if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("pipeline stopped", "error", err)
		}
	}()

	snapshots, unsubscribe := orch.Subscribe()
	defer unsubscribe()
	go func() {
		for s := range snapshots {
			render(s)
		}
	}()

	// Initialize hotkey listener
	listener := hotkey.NewListener(cfg.Hotkey.Keys, cfg.Hotkey.CancelKeys, cfg.Hotkey.Mode)
	go listener.Start()

	commands := make(chan string)
	go readConsole(commands)

	printBanner(cfg, svc)

	// Handle OS signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Main event loop
	for {
		select {
		case ev, ok := <-listener.Events():
			if !ok {
				return nil
			}
			dispatch(ctx, orch, hotkeyCommand(ev.Type))

		case line, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			if quit := console(ctx, orch, line); quit {
				shutdown(cancel, listener)
			}

		case sig := <-sigCh:
			log.Printf("Received %v, shutting down...", sig)
			shutdown(cancel, listener)
		}
	}
}

// shutdown exits the process. gohook's C event loop can crash during
// cleanup, so the process exits directly once the pipeline is cancelled.
func shutdown(cancel context.CancelFunc, listener *hotkey.Listener) {
	cancel()
	listener.Stop()
	log.Println("Goodbye!")
	os.Exit(0)
}

func hotkeyCommand(t hotkey.EventType) pipeline.Command {
	switch t {
	case hotkey.EventStart:
		return pipeline.Start
	case hotkey.EventStop:
		return pipeline.Stop
	default:
		return pipeline.Cancel
	}
}

func dispatch(ctx context.Context, orch *pipeline.Orchestrator, cmd pipeline.Command) {
	if err := orch.Dispatch(ctx, cmd); err != nil {
		slog.Debug("command rejected", "command", cmd.Kind, "error", err)
		log.Println(pipeline.Message(err))
	}
}

func readConsole(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- strings.TrimSpace(scanner.Text())
	}
}

// console handles one line typed on stdin. It reports whether the user
// asked to quit.
func console(ctx context.Context, orch *pipeline.Orchestrator, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "p", "play":
		dispatch(ctx, orch, pipeline.Play)
	case "x", "cancel":
		dispatch(ctx, orch, pipeline.Cancel)
	case "s", "swap":
		dispatch(ctx, orch, pipeline.SwapPair)
	case "pair":
		if len(fields) != 3 {
			log.Println("usage: pair <source> <target>")
			return false
		}
		dispatch(ctx, orch, pipeline.SetPair(lang.Pair{Source: fields[1], Target: fields[2]}))
	case "h", "history":
		for i, r := range orch.History() {
			fmt.Printf("  %2d. [%s] %s -> %s\n", i+1, r.Pair, r.Transcription, r.Translation)
		}
	case "q", "quit":
		return true
	default:
		log.Println("commands: play, cancel, swap, pair <src> <tgt>, history, quit")
	}
	return false
}

// render prints state changes for the user.
func render(s pipeline.Snapshot) {
	switch s.State {
	case pipeline.Recording:
		log.Println("Recording...")
	case pipeline.Translating:
		log.Printf("Translating (%s)...", s.Pair)
	case pipeline.Synthesizing:
		log.Println("Generating voice...")
	case pipeline.Playing:
		log.Println("Playing...")
	case pipeline.Ready, pipeline.ReadyTextOnly:
		if s.Run != nil {
			log.Printf("Heard:      %s", s.Run.Transcription)
			log.Printf("Translated: %s", s.Run.Translation)
		}
		if s.Err != nil {
			log.Println(s.Message())
		}
	case pipeline.Failed:
		log.Printf("ERROR: %s", s.Message())
	case pipeline.Idle:
		if s.Err != nil {
			log.Println(s.Message())
		}
	}
}

func printBanner(cfg *config.Config, svc *services) {
	keys := strings.Join(cfg.Hotkey.Keys, "+")
	voice := "default voice"
	if p := svc.registry.Current(); p != nil {
		voice = fmt.Sprintf("accent %q", p.Name)
	}

	fmt.Println()
	fmt.Println("gostt-translate ready")
	fmt.Printf("  Server:   %s\n", svc.client.BaseURL())
	fmt.Printf("  Pair:     %s -> %s\n", lang.Label(cfg.Languages.Source), lang.Label(cfg.Languages.Target))
	fmt.Printf("  Voice:    %s\n", voice)
	fmt.Printf("  Hotkey:   %s (%s mode)\n", keys, cfg.Hotkey.Mode)
	if len(cfg.Hotkey.CancelKeys) > 0 {
		fmt.Printf("  Cancel:   %s\n", strings.Join(cfg.Hotkey.CancelKeys, "+"))
	}
	fmt.Printf("  Output:   %s\n", cfg.Output.Method)
	fmt.Println()
	fmt.Println("Type play, cancel, swap, pair <src> <tgt>, history or quit. Press Ctrl+C to exit.")
	fmt.Println()
}
