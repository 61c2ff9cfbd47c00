// Package audio provides microphone capture, speaker playback and WAV file
// handling on top of malgo and go-audio.
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned when a stream is not a decodable WAV file.
var ErrInvalidWAV = errors.New("audio: invalid wav data")

// Clip is decoded PCM audio held in memory as interleaved float32 samples
// normalized to [-1.0, 1.0].
type Clip struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames in the clip.
func (c Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the playing time of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// WriteWAV encodes clip as 16-bit PCM WAV at path.
func WriteWAV(path string, clip Clip) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, clip.SampleRate, 16, clip.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: clip.Channels, SampleRate: clip.SampleRate},
		Data:           make([]int, len(clip.Samples)),
		SourceBitDepth: 16,
	}
	for i, s := range clip.Samples {
		buf.Data[i] = floatToInt16(s)
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("audio: finalize wav: %w", err)
	}
	return f.Close()
}

// DecodeWAV reads a PCM WAV stream into a Clip.
func DecodeWAV(r io.ReadSeeker) (Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Clip{}, ErrInvalidWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels == 0 || buf.Format.SampleRate == 0 {
		return Clip{}, ErrInvalidWAV
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = buf.SourceBitDepth
	}

	clip := Clip{
		Samples:    make([]float32, len(buf.Data)),
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}
	for i, s := range buf.Data {
		clip.Samples[i] = intToFloat(s, depth)
	}
	return clip, nil
}

// DecodeWAVFile opens and decodes the WAV file at path.
func DecodeWAVFile(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer f.Close()
	return DecodeWAV(f)
}

func floatToInt16(s float32) int {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int(s * 32767)
}

// intToFloat normalizes a PCM sample of the given bit depth. 8-bit WAV is
// unsigned, every other depth is signed.
func intToFloat(s, depth int) float32 {
	switch depth {
	case 8:
		return float32(s-128) / 128.0
	case 24:
		return float32(s) / 8388608.0
	case 32:
		return float32(float64(s) / 2147483648.0)
	default:
		return float32(s) / 32768.0
	}
}
