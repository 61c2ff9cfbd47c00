package audio

import (
	"errors"
	"testing"
)

func newTestSound(frames int) *speakerSound {
	return &speakerSound{
		clip: Clip{Samples: make([]float32, frames), SampleRate: 16000, Channels: 1},
		done: make(chan error, 1),
	}
}

func TestSpeakerDoneAfterFinalPeriod(t *testing.T) {
	snd := newTestSound(6)
	buf := make([]byte, 4*4)

	snd.onData(buf, nil, 4)
	snd.onData(buf, nil, 4) // last 2 frames handed to the device
	select {
	case <-snd.Done():
		t.Fatal("done signalled before the final period was played")
	default:
	}

	for i := range buf {
		buf[i] = 0xff
	}
	snd.onData(buf, nil, 4)
	select {
	case err := <-snd.Done():
		if err != nil {
			t.Errorf("Done() = %v, want nil", err)
		}
	default:
		t.Fatal("done not signalled after the final period")
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("buf[%d] = %#x, want silence", i, b)
		}
	}
}

func TestSpeakerUnexpectedStopFails(t *testing.T) {
	snd := newTestSound(8)
	snd.onData(make([]byte, 4*4), nil, 4)

	snd.onStop()

	select {
	case err := <-snd.Done():
		if !errors.Is(err, ErrDeviceStopped) {
			t.Errorf("Done() = %v, want ErrDeviceStopped", err)
		}
	default:
		t.Fatal("device stop not reported")
	}
}

func TestSpeakerRequestedStopIsSilent(t *testing.T) {
	snd := newTestSound(8)
	snd.stopping.Store(true)

	snd.onStop()

	select {
	case err := <-snd.Done():
		t.Errorf("Done() = %v, want no signal for a requested stop", err)
	default:
	}
}

func TestSpeakerStopAfterEndIsSilent(t *testing.T) {
	snd := newTestSound(4)
	snd.onData(make([]byte, 4*4), nil, 4)

	snd.onStop()

	select {
	case err := <-snd.Done():
		t.Errorf("Done() = %v, want no error once every frame was played", err)
	default:
	}
}
