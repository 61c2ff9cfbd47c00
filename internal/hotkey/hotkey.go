// Package hotkey provides a global push-to-talk listener using gohook.
// It supports "hold" mode (press to start, release to stop) and
// "toggle" mode (press to start, press again to stop), plus a separate
// combo that cancels the current run.
package hotkey

import (
	"sync"

	hook "github.com/robotn/gohook"
)

// EventType indicates what the user asked for.
type EventType int

const (
	// EventStart signals that the talk hotkey was activated (start recording).
	EventStart EventType = iota
	// EventStop signals that the talk hotkey was deactivated (stop recording).
	EventStop
	// EventCancel signals that the cancel hotkey was pressed.
	EventCancel
)

func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	case EventCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Event is emitted on the channel returned by Events.
type Event struct {
	Type EventType
}

// Listener manages the global hotkeys and emits events.
type Listener struct {
	keys       []string
	cancelKeys []string
	ch         chan Event
	done       chan struct{}
	once       sync.Once
	talk       *talkState
}

// NewListener creates a Listener for the talk combo keys and the optional
// cancelKeys combo. keys should be lowercase key names
// (e.g., ["ctrl", "shift", "t"]). mode must be "hold" or "toggle".
func NewListener(keys, cancelKeys []string, mode string) *Listener {
	ch := make(chan Event, 16)
	return &Listener{
		keys:       keys,
		cancelKeys: cancelKeys,
		ch:         ch,
		done:       make(chan struct{}),
		talk:       &talkState{toggle: mode == "toggle", emit: nonBlocking(ch)},
	}
}

// Events returns the channel that receives hotkey events.
// The channel is closed when Stop is called.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Start begins listening for the global hotkeys.
// This function blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	hook.Register(hook.KeyDown, l.keys, func(hook.Event) { l.talk.down() })
	hook.Register(hook.KeyUp, l.keys, func(hook.Event) { l.talk.up() })

	if len(l.cancelKeys) > 0 {
		emit := nonBlocking(l.ch)
		hook.Register(hook.KeyDown, l.cancelKeys, func(hook.Event) {
			l.talk.reset()
			emit(EventCancel)
		})
	}

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}

// nonBlocking returns an emitter that drops events when ch is full.
func nonBlocking(ch chan<- Event) func(EventType) {
	return func(t EventType) {
		select {
		case ch <- Event{Type: t}:
		default: // don't block the hook thread
		}
	}
}

// talkState turns key presses of the talk combo into start/stop events.
// In hold mode KeyDown starts and KeyUp stops; key repeat while held is
// ignored. In toggle mode each KeyDown flips between start and stop.
type talkState struct {
	mu     sync.Mutex
	toggle bool
	active bool
	emit   func(EventType)
}

func (s *talkState) down() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.toggle {
		if s.active {
			s.emit(EventStop)
		} else {
			s.emit(EventStart)
		}
		s.active = !s.active
		return
	}

	if !s.active {
		s.active = true
		s.emit(EventStart)
	}
}

func (s *talkState) up() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.toggle || !s.active {
		return
	}
	s.active = false
	s.emit(EventStop)
}

// reset forgets an in-progress press so the next press starts again.
func (s *talkState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}
