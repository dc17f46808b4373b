package virtualsource

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agalue/loopback-mixer/internal/mixer"
)

func newTestOpusSource(t *testing.T) *OpusSource {
	t.Helper()
	mx := mixer.New(48000, 960)
	src, err := NewOpusSource(mx, 48000)
	require.NoError(t, err)
	return src
}

func TestRunReturnsNilOnImmediateEOF(t *testing.T) {
	src := newTestOpusSource(t)
	require.NoError(t, src.Run(bytes.NewReader(nil)))
}

func TestRunRejectsOversizedPacketLength(t *testing.T) {
	src := newTestOpusSource(t)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(maxPacketBytes+1))

	err := src.Run(&buf)
	require.Error(t, err)
}

func TestRunReturnsErrorOnTruncatedPayload(t *testing.T) {
	src := newTestOpusSource(t)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(10))
	buf.Write([]byte{1, 2, 3}) // fewer bytes than declared length

	err := src.Run(&buf)
	require.Error(t, err)
}

func TestIDReturnsRegisteredSource(t *testing.T) {
	src := newTestOpusSource(t)
	require.NotZero(t, src.ID())
}
