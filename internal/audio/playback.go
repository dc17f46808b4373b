package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/malgo"

	"github.com/agalue/loopback-mixer/internal/mixer"
)

// Player drives the host output device's audio callback, pulling rendered
// stereo frames directly from a Mixer on every callback invocation. It is
// the concrete realization of the host audio driver the mixer core itself
// only references through Mixer.Process — never blocking or allocating in
// the callback.
type Player struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	mx     *mixer.Mixer
	scratch []float32
}

// NewPlayer creates a playback device bound to mx's sample rate, pulling a
// block from mx on every device callback.
func NewPlayer(mx *mixer.Mixer) (*Player, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	p := &Player{
		ctx:     ctx,
		mx:      mx,
		scratch: make([]float32, mx.MaxBlockFrames()*mixer.Channels),
	}

	if err := p.initDevice(); err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, err
	}
	return p, nil
}

func (p *Player) initDevice() error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(mixer.Channels)
	deviceConfig.SampleRate = p.mx.SampleRate()
	deviceConfig.PeriodSizeInMilliseconds = 1000 * uint32(p.mx.MaxBlockFrames()) / p.mx.SampleRate()

	onSendFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		frames := int(framecount)
		need := frames * mixer.Channels
		if need > len(p.scratch) {
			// Host requested more than the mixer was sized for: fall back to
			// silence for this callback rather than allocating on the audio
			// thread.
			for i := range pOutputSample {
				pOutputSample[i] = 0
			}
			return
		}

		out := p.scratch[:need]
		if _, err := p.mx.Process(out, frames, mixer.Channels); err != nil {
			for i := range out {
				out[i] = 0
			}
		}

		for i, sample := range out {
			binary.LittleEndian.PutUint32(pOutputSample[i*4:], math.Float32bits(sample))
		}
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSendFrames})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	p.device = device
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	log.Info("playback device started", "sample_rate", p.mx.SampleRate(), "block_frames", p.mx.MaxBlockFrames())
	return nil
}

// Close stops playback and releases all resources.
func (p *Player) Close() {
	if p.device != nil {
		p.device.Stop()
		p.device.Uninit()
		p.device = nil
	}
	if p.ctx != nil {
		_ = p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
	}
}
