package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// ErrDeviceStopped is sent on Done when the playback device stops before
// the clip has been played.
var ErrDeviceStopped = errors.New("audio: playback device stopped before the clip ended")

// Sound is a clip loaded onto an output device.
type Sound interface {
	// Start begins (or resumes) playback from the current position.
	Start() error
	// Stop halts playback and rewinds to the beginning.
	Stop() error
	// Position is how much of the clip has been played.
	Position() time.Duration
	// Duration is the total length of the clip.
	Duration() time.Duration
	// Done receives once when playback reaches the end of the clip, or an
	// error if the device failed. Backends without a completion signal may
	// return nil.
	Done() <-chan error
	// Release frees the device. The sound cannot be used afterwards.
	Release() error
}

// Output loads clips for playback.
type Output interface {
	Load(clip Clip) (Sound, error)
}

// Speaker plays clips on the default playback device.
type Speaker struct {
	ctx *malgo.AllocatedContext
}

// NewSpeaker initializes the audio context. Call Close() when done.
func NewSpeaker() (*Speaker, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	return &Speaker{ctx: ctx}, nil
}

// Load prepares a playback device for clip. The device does not start
// until Start is called on the returned Sound.
func (s *Speaker) Load(clip Clip) (Sound, error) {
	if clip.Frames() == 0 {
		return nil, fmt.Errorf("audio: empty clip")
	}

	snd := &speakerSound{
		clip: clip,
		done: make(chan error, 1),
	}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceCfg.Playback.Format = malgo.FormatF32
	deviceCfg.Playback.Channels = uint32(clip.Channels)
	deviceCfg.SampleRate = uint32(clip.SampleRate)

	device, err := malgo.InitDevice(s.ctx.Context, deviceCfg, malgo.DeviceCallbacks{
		Data: snd.onData,
		Stop: snd.onStop,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing playback device: %w", err)
	}
	snd.device = device
	return snd, nil
}

// Close releases the audio context.
func (s *Speaker) Close() error {
	if s.ctx == nil {
		return nil
	}
	if err := s.ctx.Uninit(); err != nil {
		return fmt.Errorf("uninitializing audio context: %w", err)
	}
	s.ctx.Free()
	s.ctx = nil
	return nil
}

type speakerSound struct {
	clip   Clip
	device *malgo.Device
	frame  atomic.Int64 // next frame to play

	doneOnce sync.Once
	done     chan error
	stopping atomic.Bool // set while Stop or Release halts the device

	mu       sync.Mutex
	released bool
}

func (s *speakerSound) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return fmt.Errorf("audio: sound released")
	}
	s.stopping.Store(false)
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("starting playback device: %w", err)
	}
	return nil
}

func (s *speakerSound) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.stopping.Store(true)
	if s.device.IsStarted() {
		if err := s.device.Stop(); err != nil {
			return fmt.Errorf("stopping playback device: %w", err)
		}
	}
	s.frame.Store(0)
	return nil
}

func (s *speakerSound) Position() time.Duration {
	return time.Duration(s.frame.Load()) * time.Second / time.Duration(s.clip.SampleRate)
}

func (s *speakerSound) Duration() time.Duration {
	return s.clip.Duration()
}

func (s *speakerSound) Done() <-chan error {
	return s.done
}

func (s *speakerSound) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	s.stopping.Store(true)
	s.device.Uninit()
	return nil
}

// onData fills the output buffer from the clip and zero-fills past the end.
// Completion is signalled on the first callback after the last frames were
// handed to the device, so that the final period has been played.
func (s *speakerSound) onData(pOutput, _ []byte, frameCount uint32) {
	channels := s.clip.Channels
	start := int(s.frame.Load())
	total := s.clip.Frames()

	if start >= total {
		for i := range pOutput {
			pOutput[i] = 0
		}
		s.finish(nil)
		return
	}

	n := int(frameCount)
	if start+n > total {
		n = total - start
	}
	if n < 0 {
		n = 0
	}

	written := float32ToBytes(pOutput, s.clip.Samples[start*channels:(start+n)*channels])
	for i := written * 4; i < len(pOutput); i++ {
		pOutput[i] = 0
	}
	s.frame.Store(int64(start + n))
}

// onStop runs when the device stops. A stop that was not requested before
// the clip was fully played means the device failed or went away.
func (s *speakerSound) onStop() {
	if s.stopping.Load() {
		return
	}
	if int(s.frame.Load()) < s.clip.Frames() {
		s.finish(ErrDeviceStopped)
	}
}

func (s *speakerSound) finish(err error) {
	s.doneOnce.Do(func() { s.done <- err })
}
