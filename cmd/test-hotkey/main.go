// Command test-hotkey is a manual check of the push-to-talk and cancel
// combos. Press the talk combo (Ctrl+Shift+T by default) and the cancel
// combo (Ctrl+Shift+X) and watch the events. Ctrl+C exits.
//
// Usage:
//
//	go run ./cmd/test-hotkey [--mode hold|toggle] [--keys ctrl,shift,t] [--cancel ctrl,shift,x]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chaz8081/gostt-translate/internal/hotkey"
)

func main() {
	mode := flag.String("mode", "hold", "hotkey mode: hold or toggle")
	keys := flag.String("keys", "ctrl,shift,t", "talk combo, comma separated")
	cancelKeys := flag.String("cancel", "ctrl,shift,x", "cancel combo, comma separated (empty to disable)")
	flag.Parse()

	talk := strings.Split(*keys, ",")
	var cancel []string
	if *cancelKeys != "" {
		cancel = strings.Split(*cancelKeys, ",")
	}

	fmt.Printf("Talk: %s (%s mode)\n", strings.Join(talk, "+"), *mode)
	if len(cancel) > 0 {
		fmt.Printf("Cancel: %s\n", strings.Join(cancel, "+"))
	}
	fmt.Println("Press Ctrl+C to exit.")

	listener := hotkey.NewListener(talk, cancel, *mode)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		listener.Stop()
	}()

	go func() {
		for ev := range listener.Events() {
			switch ev.Type {
			case hotkey.EventStart:
				fmt.Println(">>> START  (record)")
			case hotkey.EventStop:
				fmt.Println("<<< STOP   (translate)")
			case hotkey.EventCancel:
				fmt.Println("xxx CANCEL")
			}
		}
		fmt.Println("Event channel closed.")
	}()

	// Blocks until stopped
	listener.Start()
	fmt.Println("Done.")
}
