package audio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
)

// CaptureProbe checks whether the process may open the default microphone.
// Desktop platforms surface a denied privacy permission as a device init
// or start failure.
type CaptureProbe struct {
	SampleRate uint32
	Channels   uint32
}

// Probe opens and immediately closes a capture device.
func (p CaptureProbe) Probe(_ context.Context) error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("initializing audio context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = p.Channels
	deviceCfg.SampleRate = p.SampleRate

	device, err := malgo.InitDevice(ctx.Context, deviceCfg, malgo.DeviceCallbacks{})
	if err != nil {
		return fmt.Errorf("initializing capture device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("starting capture device: %w", err)
	}
	return device.Stop()
}
