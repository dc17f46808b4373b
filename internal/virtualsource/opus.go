// Package virtualsource adapts coded audio streams from peer processes onto
// the mixer's Source contract, decoding into float32 PCM and writing through
// Mixer.WriteSource exactly as any other non-real-time producer would.
package virtualsource

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/thesyncim/gopus"

	"github.com/agalue/loopback-mixer/internal/mixer"
)

// maxPacketBytes bounds a single length-prefixed Opus packet, guarding
// against a corrupt or malicious length prefix forcing a huge allocation.
const maxPacketBytes = 1 << 16

// OpusSource decodes a length-prefixed stream of Opus packets (uint32 LE
// byte length, followed by that many bytes of Opus payload) and writes the
// decoded stereo PCM into a mixer source.
type OpusSource struct {
	decoder  *gopus.Decoder
	mx       *mixer.Mixer
	sourceID mixer.SourceID
	pcm      []float32
}

// NewOpusSource registers a new mixer source and returns an adapter that
// will decode Opus packets from Run's reader into it.
func NewOpusSource(mx *mixer.Mixer, capacityFrames int) (*OpusSource, error) {
	decoder, err := gopus.NewDecoder(int(mx.SampleRate()), mixer.Channels)
	if err != nil {
		return nil, fmt.Errorf("virtualsource: creating opus decoder: %w", err)
	}

	id, _ := mx.AddSource(capacityFrames)
	return &OpusSource{
		decoder:  decoder,
		mx:       mx,
		sourceID: id,
		pcm:      make([]float32, 5760), // 60ms stereo at 48kHz, largest Opus frame
	}, nil
}

// ID returns the mixer source id this adapter feeds.
func (o *OpusSource) ID() mixer.SourceID { return o.sourceID }

// Run reads length-prefixed Opus packets from r until EOF or a read error,
// decoding and writing each into the mixer. It blocks the calling goroutine
// and is intended to run in its own goroutine per virtual source.
func (o *OpusSource) Run(r io.Reader) error {
	var lengthBuf [4]byte
	for {
		if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("virtualsource: reading packet length: %w", err)
		}

		length := binary.LittleEndian.Uint32(lengthBuf[:])
		if length > maxPacketBytes {
			return fmt.Errorf("virtualsource: packet length %d exceeds maximum %d", length, maxPacketBytes)
		}

		packet := make([]byte, length)
		if _, err := io.ReadFull(r, packet); err != nil {
			return fmt.Errorf("virtualsource: reading packet payload: %w", err)
		}

		frames, err := o.decoder.Decode(packet, o.pcm)
		if err != nil {
			log.Warn("opus decode failed, skipping packet", "err", err)
			continue
		}

		if _, err := o.mx.WriteSource(o.sourceID, o.pcm[:frames*mixer.Channels]); err != nil {
			return fmt.Errorf("virtualsource: writing decoded frames: %w", err)
		}
	}
}
