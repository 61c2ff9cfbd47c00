package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chaz8081/gostt-translate/internal/audio"
	"github.com/chaz8081/gostt-translate/internal/config"
	"github.com/chaz8081/gostt-translate/internal/lang"
	"github.com/chaz8081/gostt-translate/internal/recording"
)

// runAccents manages saved accents: list, select, clear, delete, record.
func runAccents(cfg *config.Config, logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	svc, err := newServices(cfg, logger)
	if err != nil {
		return err
	}
	ctx := context.Background()
	reg := svc.registry

	switch args[0] {
	case "list":
		if err := reg.Refresh(ctx); err != nil {
			return err
		}
		profiles := reg.Profiles()
		if len(profiles) == 0 {
			fmt.Println("No saved accents.")
			return nil
		}
		selected := reg.SelectedID()
		for _, p := range profiles {
			mark := " "
			if p.ID == selected {
				mark = "*"
			}
			fmt.Printf("%s %-6s %-24s %s\n", mark, p.ID, p.Name, lang.Label(p.Language))
		}
		return nil

	case "select":
		if len(args) != 2 {
			return errors.New("usage: accents select <id>")
		}
		if err := reg.Refresh(ctx); err != nil {
			return err
		}
		if err := reg.Select(args[1]); err != nil {
			return err
		}
		log.Printf("Selected accent %s", args[1])
		return nil

	case "clear":
		if err := reg.Clear(); err != nil {
			return err
		}
		log.Println("Using the default voice")
		return nil

	case "delete":
		if len(args) != 2 {
			return errors.New("usage: accents delete <id>")
		}
		if err := reg.Delete(ctx, args[1]); err != nil {
			return err
		}
		log.Printf("Deleted accent %s", args[1])
		return nil

	case "record":
		return recordAccent(ctx, cfg, svc, logger, args[1:])

	default:
		return fmt.Errorf("unknown accents command %q", args[0])
	}
}

// recordAccent captures a voice sample and saves it as a new accent.
func recordAccent(ctx context.Context, cfg *config.Config, svc *services, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("accents record", flag.ContinueOnError)
	language := fs.String("lang", cfg.Languages.Source, "language of the sample")
	seconds := fs.Int("seconds", 0, "stop after this many seconds (0: press Enter to stop)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: accents record [--lang code] [--seconds n] <name>")
	}
	name := fs.Arg(0)
	if _, ok := lang.Lookup(*language); !ok {
		return fmt.Errorf("unsupported language %q", *language)
	}

	rec, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels)
	if err != nil {
		return fmt.Errorf("initializing recorder: %w", err)
	}
	defer rec.Close()
	mgr := recording.NewManager(rec, recording.NewOSFS(cfg.RecordingDir()), logger)

	if _, err := mgr.Open(ctx); err != nil {
		return err
	}
	if *seconds > 0 {
		log.Printf("Recording for %ds...", *seconds)
		time.Sleep(time.Duration(*seconds) * time.Second)
	} else {
		log.Println("Recording... press Enter to stop")
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
	}

	session, err := mgr.Close(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if !cfg.Recording.KeepFiles {
			_ = mgr.Discard(session)
		}
	}()

	log.Printf("Uploading %s sample...", humanize.Bytes(uint64(session.Size)))
	p, err := svc.registry.Save(ctx, session.Path, name, *language)
	if err != nil {
		return err
	}
	log.Printf("Saved accent %q (id %s)", p.Name, p.ID)
	return nil
}
