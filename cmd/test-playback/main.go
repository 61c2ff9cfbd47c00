// Command test-playback is a manual test for audio output.
// It plays a local WAV file directly on the speaker, or fetches an artifact
// from the translation service through the playback engines.
//
// Usage:
//
//	go run ./cmd/test-playback --file sample.wav
//	go run ./cmd/test-playback --base http://127.0.0.1:8000 [--engine stream|polled|both] media/out.wav
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chaz8081/gostt-translate/internal/api"
	"github.com/chaz8081/gostt-translate/internal/audio"
	"github.com/chaz8081/gostt-translate/internal/playback"
)

func main() {
	file := flag.String("file", "", "local WAV file to play")
	base := flag.String("base", "http://127.0.0.1:8000", "translation service base URL")
	engine := flag.String("engine", "both", "playback engine: stream, polled or both")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	speaker, err := audio.NewSpeaker()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer speaker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *file != "" {
		err = playFile(ctx, speaker, *file)
	} else {
		err = playRemote(ctx, speaker, logger, *base, *engine, flag.Arg(0))
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Done!")
}

func playFile(ctx context.Context, out audio.Output, path string) error {
	clip, err := audio.DecodeWAVFile(path)
	if err != nil {
		return err
	}
	fmt.Printf("Playing %s (%s, %d Hz, %d ch)...\n", path, clip.Duration().Round(time.Millisecond), clip.SampleRate, clip.Channels)

	snd, err := out.Load(clip)
	if err != nil {
		return err
	}
	defer snd.Release()

	if err := snd.Start(); err != nil {
		return err
	}
	select {
	case err := <-snd.Done():
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func playRemote(ctx context.Context, out audio.Output, logger *slog.Logger, base, engine, ref string) error {
	if ref == "" {
		return fmt.Errorf("an artifact reference is required")
	}

	client, err := api.New(base, api.Options{Logger: logger})
	if err != nil {
		return err
	}

	stream := &playback.Stream{Resolver: client, Output: out, Logger: logger}
	polled := &playback.Polled{
		Resolver:     client,
		Output:       out,
		CacheDir:     os.TempDir(),
		PollInterval: 100 * time.Millisecond,
		Logger:       logger,
	}

	var e playback.Engine
	switch engine {
	case "stream":
		e = stream
	case "polled":
		e = polled
	case "both":
		e = playback.NewPlayer(stream, polled, logger)
	default:
		return fmt.Errorf("unknown engine %q", engine)
	}

	fmt.Printf("Playing %s with %s engine...\n", ref, engine)
	return e.Play(ctx, ref)
}
