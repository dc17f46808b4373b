// Package audio adapts the host platform's audio devices (via malgo) onto
// the mixer's stereo source and sink contracts. It owns device lifecycle and
// device-rate conversion; drift-feedback resampling inside the mix itself is
// handled by the mixer package, not here.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/malgo"

	"github.com/agalue/loopback-mixer/internal/mixer"
)

// Ring buffer configuration constants for the capture-side staging buffer
// between the audio callback and the goroutine that pushes into the mixer.
const (
	ringBufferSize     = 128
	maxSamplesPerChunk = 4096
)

type audioChunk struct {
	samples []float32
	len     int
}

// stagingRing is a lock-free single-producer single-consumer ring buffer
// sitting between the malgo audio callback and the mixer-feeding goroutine,
// so the callback never waits on the mixer. The callback is not
// allocation-free: its sample buffers go through float32Pool, and each Put
// in returnFloat32Buffer allocates a new slice header; push also logs every
// 100th dropped chunk.
type stagingRing struct {
	chunks    [ringBufferSize]audioChunk
	head      atomic.Uint64
	tail      atomic.Uint64
	dropCount atomic.Uint64
}

func newStagingRing() *stagingRing {
	rb := &stagingRing{}
	for i := range rb.chunks {
		rb.chunks[i].samples = make([]float32, maxSamplesPerChunk)
	}
	return rb
}

func (rb *stagingRing) push(samples []float32) bool {
	head := rb.head.Load()
	tail := rb.tail.Load()

	if head-tail >= ringBufferSize {
		count := rb.dropCount.Add(1)
		if count%100 == 0 {
			log.Warn("capture staging ring full, dropping chunks", "dropped", count)
		}
		return false
	}

	slot := &rb.chunks[head%ringBufferSize]
	n := copy(slot.samples, samples)
	slot.len = n

	rb.head.Add(1)
	return true
}

func (rb *stagingRing) pop() []float32 {
	head := rb.head.Load()
	tail := rb.tail.Load()

	if head == tail {
		return nil
	}

	slot := &rb.chunks[tail%ringBufferSize]
	samples := slot.samples[:slot.len]

	rb.tail.Add(1)
	return samples
}

// Capturer feeds the mixer's microphone source from the default input
// device. Samples cross from the audio callback to a goroutine via a
// lock-free staging ring, then are written into the mixer through
// Mixer.WriteSource — never directly from the audio callback.
type Capturer struct {
	ctx              *malgo.AllocatedContext
	device           *malgo.Device
	mx               *mixer.Mixer
	sourceID         mixer.SourceID
	deviceSampleRate uint32
	running          atomic.Bool
	ringBuf          *stagingRing
	stopChan         chan struct{}
	wg               sync.WaitGroup
	resamplerL       *PolyphaseResampler
	resamplerR       *PolyphaseResampler
}

// NewCapturer creates a capturer that will push microphone audio into
// sourceID, a source already registered on mx, once Start is called.
func NewCapturer(mx *mixer.Mixer, sourceID mixer.SourceID) (*Capturer, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	return &Capturer{
		ctx:      ctx,
		mx:       mx,
		sourceID: sourceID,
		ringBuf:  newStagingRing(),
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins capturing stereo audio from the default microphone.
func (c *Capturer) Start() error {
	targetRate := c.mx.SampleRate()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(mixer.Channels)
	deviceConfig.SampleRate = targetRate
	deviceConfig.PeriodSizeInMilliseconds = 32

	tempDevice, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{})
	if err != nil {
		return fmt.Errorf("failed to query capture device: %w", err)
	}
	c.deviceSampleRate = tempDevice.SampleRate()
	tempDevice.Uninit()

	if c.deviceSampleRate != targetRate && c.deviceSampleRate > targetRate {
		c.resamplerL = NewPolyphaseResampler(int(c.deviceSampleRate), int(targetRate))
		c.resamplerR = NewPolyphaseResampler(int(c.deviceSampleRate), int(targetRate))
		log.Info("capture resampling enabled", "from_hz", c.deviceSampleRate, "to_hz", targetRate, "method", "polyphase")
	} else if c.deviceSampleRate != targetRate {
		log.Info("capture resampling enabled", "from_hz", c.deviceSampleRate, "to_hz", targetRate, "method", "linear")
	}

	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		if !c.running.Load() {
			return
		}
		pooledSamples := bytesToFloat32(pInputSamples)
		if len(pooledSamples) > 0 {
			c.ringBuf.push(pooledSamples)
		}
		returnFloat32Buffer(pooledSamples)
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	c.device = device
	c.running.Store(true)

	c.wg.Add(1)
	go c.processLoop()

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

// processLoop drains the staging ring, applies device-rate conversion, and
// writes the resulting stereo frames into the mixer's microphone source.
func (c *Capturer) processLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopChan:
			return
		default:
			samples := c.ringBuf.pop()
			if samples != nil && c.running.Load() {
				samplesCopy := make([]float32, len(samples))
				copy(samplesCopy, samples)
				samplesCopy = c.convertRate(samplesCopy)

				if _, err := c.mx.WriteSource(c.sourceID, samplesCopy); err != nil {
					log.Error("failed to write microphone samples", "err", err)
				}
			} else {
				select {
				case <-c.stopChan:
					return
				case <-time.After(100 * time.Microsecond):
				}
			}
		}
	}
}

// convertRate deinterleaves a stereo block, resamples each channel
// independently with the configured device-rate converter, and
// re-interleaves. A no-op when device and target rates match.
func (c *Capturer) convertRate(interleaved []float32) []float32 {
	if c.deviceSampleRate == c.mx.SampleRate() {
		return interleaved
	}

	frames := len(interleaved) / mixer.Channels
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = interleaved[i*mixer.Channels]
		right[i] = interleaved[i*mixer.Channels+1]
	}

	if c.resamplerL != nil {
		left = c.resamplerL.Resample(left)
		right = c.resamplerR.Resample(right)
	} else {
		left = ResampleInPlace(left, int(c.deviceSampleRate), int(c.mx.SampleRate()))
		right = ResampleInPlace(right, int(c.deviceSampleRate), int(c.mx.SampleRate()))
	}

	out := make([]float32, len(left)*mixer.Channels)
	for i := 0; i < len(left) && i < len(right); i++ {
		out[i*mixer.Channels] = left[i]
		out[i*mixer.Channels+1] = right[i]
	}
	return out
}

// Stop halts audio capture and releases the device.
func (c *Capturer) Stop() {
	c.running.Store(false)

	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
	}

	c.wg.Wait()

	if c.device != nil {
		c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
}

// Close releases all audio resources, including the shared malgo context.
func (c *Capturer) Close() {
	c.Stop()
	if c.ctx != nil {
		_ = c.ctx.Uninit()
		c.ctx.Free()
		c.ctx = nil
	}
}

var float32Pool = sync.Pool{
	New: func() interface{} {
		buf := make([]float32, 4096)
		return &buf
	},
}

func bytesToFloat32(data []byte) []float32 {
	numSamples := len(data) / 4
	pBuf := float32Pool.Get().(*[]float32)

	if cap(*pBuf) < numSamples {
		*pBuf = make([]float32, numSamples)
	}
	samples := (*pBuf)[:numSamples]

	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}

func returnFloat32Buffer(samples []float32) {
	if samples == nil {
		return
	}
	buf := samples[:cap(samples)]
	float32Pool.Put(&buf)
}
