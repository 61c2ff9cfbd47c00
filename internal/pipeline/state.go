package pipeline

import (
	"time"

	"github.com/chaz8081/gostt-translate/internal/accent"
	"github.com/chaz8081/gostt-translate/internal/lang"
)

// State is the orchestrator's position in the pipeline.
type State int

const (
	Idle State = iota
	Recording
	Verifying
	Translating
	Synthesizing
	Ready
	ReadyTextOnly
	Playing
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Verifying:
		return "verifying"
	case Translating:
		return "translating"
	case Synthesizing:
		return "synthesizing"
	case Ready:
		return "ready"
	case ReadyTextOnly:
		return "ready-text-only"
	case Playing:
		return "playing"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Active reports whether a run is in progress in this state, i.e. a new
// recording may not start.
func (s State) Active() bool {
	switch s {
	case Recording, Verifying, Translating, Synthesizing, Playing:
		return true
	default:
		return false
	}
}

// Run is one pass through the pipeline, from recording to playback.
type Run struct {
	ID            string
	Pair          lang.Pair
	Accent        *accent.Profile // snapshotted when synthesis was requested
	Transcription string
	Translation   string
	ArtifactRef   string
	Err           error
	StartedAt     time.Time
	FinishedAt    time.Time
}

func (r *Run) clone() *Run {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Accent != nil {
		a := *r.Accent
		cp.Accent = &a
	}
	return &cp
}

// Snapshot is what the presentation layer renders.
type Snapshot struct {
	State State
	Pair  lang.Pair // pair for the next run
	Run   *Run      // current or most recent run, nil before the first
	Err   error     // error to surface, nil if none
}

// Message renders Err for the user.
func (s Snapshot) Message() string {
	return Message(s.Err)
}

// CommandKind identifies a Command.
type CommandKind int

const (
	CmdStart CommandKind = iota
	CmdStop
	CmdCancel
	CmdPlay
	CmdSetPair
	CmdSwapPair
)

func (k CommandKind) String() string {
	switch k {
	case CmdStart:
		return "start"
	case CmdStop:
		return "stop"
	case CmdCancel:
		return "cancel"
	case CmdPlay:
		return "play"
	case CmdSetPair:
		return "set-pair"
	case CmdSwapPair:
		return "swap-pair"
	default:
		return "unknown"
	}
}

// Command is a request from the presentation layer.
type Command struct {
	Kind CommandKind
	Pair lang.Pair // CmdSetPair only
}

// Convenience commands.
var (
	Start    = Command{Kind: CmdStart}
	Stop     = Command{Kind: CmdStop}
	Cancel   = Command{Kind: CmdCancel}
	Play     = Command{Kind: CmdPlay}
	SwapPair = Command{Kind: CmdSwapPair}
)

// SetPair returns a command that changes the language pair for the next
// run.
func SetPair(p lang.Pair) Command {
	return Command{Kind: CmdSetPair, Pair: p}
}
