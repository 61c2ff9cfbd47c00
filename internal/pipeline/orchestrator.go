// Package pipeline sequences a voice translation run: permission check,
// recording, upload for transcription and translation, speech synthesis and
// playback. A single event loop owns all run state; stages run in their own
// goroutines and report back to it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/chaz8081/gostt-translate/internal/accent"
	"github.com/chaz8081/gostt-translate/internal/api"
	"github.com/chaz8081/gostt-translate/internal/auth"
	"github.com/chaz8081/gostt-translate/internal/lang"
	"github.com/chaz8081/gostt-translate/internal/permission"
	"github.com/chaz8081/gostt-translate/internal/playback"
	"github.com/chaz8081/gostt-translate/internal/recording"
)

var (
	// ErrRunActive is returned by Start and Play while a run is in progress.
	ErrRunActive = errors.New("pipeline: a run is already active")
	// ErrNotRecording is returned by Stop when nothing is being recorded.
	ErrNotRecording = errors.New("pipeline: not recording")
	// ErrNothingToPlay is returned by Play when no artifact exists yet.
	ErrNothingToPlay = errors.New("pipeline: nothing to play")
	// ErrStopped is returned by Dispatch after Run has returned.
	ErrStopped = errors.New("pipeline: orchestrator stopped")
)

const (
	historySize = 50
	subBuffer   = 64
)

// Recorder owns the recording session.
type Recorder interface {
	Open(ctx context.Context) (*recording.Session, error)
	Close(ctx context.Context) (*recording.Session, error)
	Abort()
	Discard(s *recording.Session) error
}

// Translator uploads a recording and returns its translation.
type Translator interface {
	Translate(ctx context.Context, r api.TranslateRequest) (api.TranslateResult, error)
}

// Synthesizer turns translated text into an audio artifact.
type Synthesizer interface {
	Synthesize(ctx context.Context, r api.SynthesizeRequest) (api.SynthesizeResult, error)
}

// AccentSource returns the accent to use for a synthesis about to start,
// or nil for the default voice.
type AccentSource interface {
	Snapshot(ctx context.Context) *accent.Profile
}

// TextSink receives each non-empty translation, e.g. to type it into the
// focused application.
type TextSink interface {
	Inject(text string) error
}

// Options wires an Orchestrator. Accents and Sink are optional.
type Options struct {
	Gate        permission.Gate
	Recorder    Recorder
	Translator  Translator
	Synthesizer Synthesizer
	Accents     AccentSource
	Player      playback.Engine
	Credentials auth.Provider
	Sink        TextSink

	Pair      lang.Pair
	Autoplay  bool
	KeepFiles bool
	Logger    *slog.Logger
}

// Orchestrator runs at most one pipeline run at a time.
type Orchestrator struct {
	gate       permission.Gate
	rec        Recorder
	translator Translator
	synth      Synthesizer
	accents    AccentSource
	player     playback.Engine
	creds      auth.Provider
	sink       TextSink
	autoplay   bool
	keepFiles  bool
	logger     *slog.Logger
	now        func() time.Time

	cmds    chan request
	results chan stageResult
	done    chan struct{}
	running atomic.Bool

	// Owned by the loop goroutine.
	loopCtx   context.Context
	state     State
	pair      lang.Pair
	run       *Run
	last      *Run // most recent run with an artifact
	surfaced  error
	gen       uint64
	runCtx    context.Context
	cancelRun context.CancelFunc

	mu      sync.RWMutex
	snap    Snapshot
	history []Run

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

type request struct {
	cmd   Command
	reply chan error
}

// stageResult is posted by a stage goroutine. gen ties it to the run that
// started it; a result from an older generation is discarded.
type stageResult struct {
	gen         uint64
	stage       State
	session     *recording.Session
	translation api.TranslateResult
	accent      *accent.Profile
	synthesis   api.SynthesizeResult
	err         error
}

// New creates an Orchestrator. Call Run to start its event loop.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Gate == nil:
		return nil, fmt.Errorf("pipeline: permission gate is required")
	case opts.Recorder == nil:
		return nil, fmt.Errorf("pipeline: recorder is required")
	case opts.Translator == nil:
		return nil, fmt.Errorf("pipeline: translator is required")
	case opts.Synthesizer == nil:
		return nil, fmt.Errorf("pipeline: synthesizer is required")
	case opts.Player == nil:
		return nil, fmt.Errorf("pipeline: player is required")
	case opts.Credentials == nil:
		return nil, fmt.Errorf("pipeline: credentials provider is required")
	}
	if err := opts.Pair.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	o := &Orchestrator{
		gate:       opts.Gate,
		rec:        opts.Recorder,
		translator: opts.Translator,
		synth:      opts.Synthesizer,
		accents:    opts.Accents,
		player:     opts.Player,
		creds:      opts.Credentials,
		sink:       opts.Sink,
		autoplay:   opts.Autoplay,
		keepFiles:  opts.KeepFiles,
		logger:     opts.Logger,
		now:        time.Now,
		cmds:       make(chan request),
		results:    make(chan stageResult),
		done:       make(chan struct{}),
		state:      Idle,
		pair:       opts.Pair,
		subs:       make(map[int]chan Snapshot),
	}
	o.snap = Snapshot{State: Idle, Pair: opts.Pair}
	return o, nil
}

// Run processes commands and stage results until ctx is cancelled. An
// in-flight run is abandoned on return.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return fmt.Errorf("pipeline: already running")
	}
	defer close(o.done)

	o.loopCtx = ctx
	for {
		select {
		case <-ctx.Done():
			o.abandon()
			o.closeSubscribers()
			return ctx.Err()
		case req := <-o.cmds:
			req.reply <- o.handle(ctx, req.cmd)
		case res := <-o.results:
			o.apply(res)
		}
	}
}

// Dispatch sends cmd to the event loop and waits until it was handled.
// Start returns once recording is running (or was refused), Stop once
// verification has begun.
func (o *Orchestrator) Dispatch(ctx context.Context, cmd Command) error {
	req := request{cmd: cmd, reply: make(chan error, 1)}
	select {
	case o.cmds <- req:
	case <-o.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the latest published state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snap
}

// History returns up to the last 50 runs that produced a translation,
// newest first.
func (o *Orchestrator) History() []Run {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Run, len(o.history))
	copy(out, o.history)
	return out
}

// Subscribe returns a channel that receives every published snapshot,
// starting with the current one, and a function that ends the
// subscription. A subscriber that falls behind loses the oldest snapshots.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, subBuffer)

	o.subMu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	ch <- o.Snapshot()
	o.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.subMu.Lock()
			defer o.subMu.Unlock()
			if _, ok := o.subs[id]; ok {
				delete(o.subs, id)
				close(ch)
			}
		})
	}
}

func (o *Orchestrator) handle(ctx context.Context, cmd Command) error {
	o.logger.Debug("command", "cmd", cmd.Kind, "state", o.state)

	switch cmd.Kind {
	case CmdStart:
		return o.start(ctx)
	case CmdStop:
		return o.stop()
	case CmdCancel:
		o.cancel()
		return nil
	case CmdPlay:
		return o.play()
	case CmdSetPair:
		if err := cmd.Pair.Validate(); err != nil {
			return err
		}
		o.pair = cmd.Pair
		o.publish()
		return nil
	case CmdSwapPair:
		o.pair = o.pair.Swap()
		o.publish()
		return nil
	default:
		return fmt.Errorf("pipeline: unknown command %d", cmd.Kind)
	}
}

func (o *Orchestrator) start(ctx context.Context) error {
	if o.state.Active() {
		return ErrRunActive
	}

	status, err := o.gate.Ensure(ctx)
	if err == nil {
		err = status.Err()
	}
	if err != nil {
		o.state = Idle
		o.surfaced = err
		o.publish()
		return err
	}

	runCtx, _ := o.advance()
	o.run = &Run{ID: uuid.NewString(), Pair: o.pair, StartedAt: o.now()}

	session, err := o.rec.Open(runCtx)
	if err != nil {
		o.fail(err)
		return err
	}

	o.state = Recording
	o.surfaced = nil
	o.publish()
	o.logger.Info("recording", "run", o.run.ID, "pair", o.pair.String(), "path", session.Path)
	return nil
}

func (o *Orchestrator) stop() error {
	if o.state != Recording {
		return ErrNotRecording
	}
	o.state = Verifying
	o.publish()

	ctx, gen := o.runCtx, o.gen
	go func() {
		s, err := o.rec.Close(ctx)
		o.post(stageResult{gen: gen, stage: Verifying, session: s, err: err})
	}()
	return nil
}

func (o *Orchestrator) cancel() {
	prev := o.state
	if o.cancelRun != nil {
		o.cancelRun()
		o.cancelRun = nil
	}
	o.gen++

	if prev == Recording {
		o.rec.Abort()
	}
	if o.run != nil && prev.Active() {
		o.run.FinishedAt = o.now()
	}

	o.state = Idle
	o.surfaced = nil
	o.publish()
	if prev != Idle {
		o.logger.Info("run cancelled", "state", prev)
	}
}

func (o *Orchestrator) play() error {
	switch {
	case o.state == Ready && o.run != nil && o.run.ArtifactRef != "":
		o.beginPlay()
		return nil
	case o.state.Active():
		return ErrRunActive
	case o.last != nil:
		o.run = o.last.clone()
		o.beginPlay()
		return nil
	default:
		return ErrNothingToPlay
	}
}

func (o *Orchestrator) apply(res stageResult) {
	if res.gen != o.gen {
		o.logger.Debug("discarding stale result", "stage", res.stage, "gen", res.gen, "current", o.gen)
		if res.stage == Verifying {
			o.discard(res.session)
		}
		return
	}

	switch res.stage {
	case Verifying:
		o.verified(res)
	case Translating:
		o.translated(res)
	case Synthesizing:
		o.synthesized(res)
	case Playing:
		o.played(res)
	}
}

func (o *Orchestrator) verified(res stageResult) {
	if res.err != nil {
		o.discard(res.session)
		o.fail(res.err)
		return
	}

	o.state = Translating
	o.publish()

	ctx, gen, pair, session := o.runCtx, o.gen, o.run.Pair, res.session
	go func() {
		var tr api.TranslateResult
		creds, err := o.creds.Credentials(ctx)
		if err == nil {
			tr, err = o.translator.Translate(ctx, api.TranslateRequest{
				Credentials: creds,
				FilePath:    session.Path,
				SourceLang:  pair.Source,
				TargetLang:  pair.Target,
			})
		}
		o.discard(session)
		o.post(stageResult{gen: gen, stage: Translating, translation: tr, err: err})
	}()
}

func (o *Orchestrator) translated(res stageResult) {
	if res.err != nil {
		o.fail(res.err)
		return
	}

	o.run.Transcription = res.translation.Transcription
	o.run.Translation = res.translation.Translation

	if strings.TrimSpace(o.run.Translation) == "" {
		o.run.Translation = ""
		o.logger.Info("empty translation, skipping synthesis", "run", o.run.ID)
		o.finish(Idle)
		return
	}

	o.logger.Info("translated", "run", o.run.ID, "text", o.run.Translation)
	o.deliver(o.run.Translation)

	o.state = Synthesizing
	o.publish()

	ctx, gen := o.runCtx, o.gen
	text, transcription, target := o.run.Translation, o.run.Transcription, o.run.Pair.Target
	go func() {
		var profile *accent.Profile
		if o.accents != nil {
			profile = o.accents.Snapshot(ctx)
		}

		var sr api.SynthesizeResult
		creds, err := o.creds.Credentials(ctx)
		if err == nil {
			req := api.SynthesizeRequest{
				Credentials:    creds,
				TranslatedText: text,
				Transcription:  transcription,
				TargetLang:     target,
			}
			if profile != nil {
				req.AccentID = profile.ID
			}
			sr, err = o.synth.Synthesize(ctx, req)
		}
		o.post(stageResult{gen: gen, stage: Synthesizing, accent: profile, synthesis: sr, err: err})
	}()
}

func (o *Orchestrator) synthesized(res stageResult) {
	o.run.Accent = res.accent

	if res.err != nil {
		o.logger.Warn("synthesis failed, keeping text", "run", o.run.ID, "error", res.err)
		o.run.Err = res.err
		o.surfaced = res.err
		o.finish(ReadyTextOnly)
		return
	}

	o.run.ArtifactRef = res.synthesis.ArtifactRef
	o.finish(Ready)

	if o.autoplay {
		o.beginPlay()
	}
}

func (o *Orchestrator) beginPlay() {
	ctx, gen := o.advance()
	ref := o.run.ArtifactRef

	o.state = Playing
	o.surfaced = nil
	o.publish()

	go func() {
		err := o.player.Play(ctx, ref)
		o.post(stageResult{gen: gen, stage: Playing, err: err})
	}()
}

func (o *Orchestrator) played(res stageResult) {
	if res.err != nil {
		o.logger.Warn("playback failed", "run", o.run.ID, "error", res.err)
		o.run.Err = res.err
		o.surfaced = res.err
		o.state = Ready
		o.publish()
		return
	}

	o.run.Err = nil
	o.surfaced = nil
	o.state = Idle
	o.publish()
}

// advance starts a new generation with a fresh stage context, cancelling
// the previous one.
func (o *Orchestrator) advance() (context.Context, uint64) {
	if o.cancelRun != nil {
		o.cancelRun()
	}
	o.runCtx, o.cancelRun = context.WithCancel(o.loopCtx)
	o.gen++
	return o.runCtx, o.gen
}

func (o *Orchestrator) fail(err error) {
	o.logger.Warn("run failed", "run", o.run.ID, "state", o.state, "error", err)
	o.run.Err = err
	o.surfaced = err
	o.finish(Failed)
}

// finish moves the run to a state in which no stage is in flight.
func (o *Orchestrator) finish(state State) {
	o.state = state
	o.run.FinishedAt = o.now()

	if o.run.ArtifactRef != "" {
		o.last = o.run.clone()
	}
	if o.run.Translation != "" {
		o.mu.Lock()
		o.history = append([]Run{*o.run.clone()}, o.history...)
		if len(o.history) > historySize {
			o.history = o.history[:historySize]
		}
		o.mu.Unlock()
	}
	o.publish()
}

func (o *Orchestrator) abandon() {
	if o.cancelRun != nil {
		o.cancelRun()
		o.cancelRun = nil
	}
	if o.state == Recording {
		o.rec.Abort()
	}
	o.gen++
}

func (o *Orchestrator) discard(s *recording.Session) {
	if s == nil || o.keepFiles {
		return
	}
	if err := o.rec.Discard(s); err != nil {
		o.logger.Warn("removing recording", "path", s.Path, "error", err)
	}
}

func (o *Orchestrator) deliver(text string) {
	if o.sink == nil {
		return
	}
	go func() {
		if err := o.sink.Inject(text); err != nil {
			o.logger.Warn("delivering translation", "error", err)
		}
	}()
}

func (o *Orchestrator) post(res stageResult) {
	select {
	case o.results <- res:
	case <-o.done:
	}
}

func (o *Orchestrator) publish() {
	s := Snapshot{State: o.state, Pair: o.pair, Run: o.run.clone(), Err: o.surfaced}

	o.mu.Lock()
	o.snap = s
	o.mu.Unlock()

	o.subMu.Lock()
	defer o.subMu.Unlock()
	for _, ch := range o.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

func (o *Orchestrator) closeSubscribers() {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for id, ch := range o.subs {
		close(ch)
		delete(o.subs, id)
	}
}
