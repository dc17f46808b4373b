package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agalue/loopback-mixer/internal/mixer"
)

func newTestServer(t *testing.T) (*Server, mixer.SourceID) {
	t.Helper()
	mx := mixer.New(48000, 960)
	id, _ := mx.AddSource(48000)
	return NewServer(mx), id
}

func TestHandleStatusReturnsSnapshot(t *testing.T) {
	server, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status mixer.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, uint32(48000), status.SampleRate)
	require.Len(t, status.Sources, 1)
}

func TestHandleSetGainAppliesToSource(t *testing.T) {
	server, id := newTestServer(t)

	body, _ := json.Marshal(gainRequest{Linear: 0.5})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, sourcePath(id, "gain"), bytes.NewReader(body))
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.InDelta(t, 0.5, server.mx.Status().Sources[0].GainLinear, 1e-6)
}

func TestHandleSetMuteAppliesToSource(t *testing.T) {
	server, id := newTestServer(t)

	body, _ := json.Marshal(muteRequest{Muted: true})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, sourcePath(id, "mute"), bytes.NewReader(body))
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, server.mx.Status().Sources[0].Muted)
}

func TestHandleSetGainUnknownSourceReturns404(t *testing.T) {
	server, _ := newTestServer(t)

	body, _ := json.Marshal(gainRequest{Linear: 1})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sources/999/gain", bytes.NewReader(body))
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSetGainRejectsMalformedBody(t *testing.T) {
	server, id := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, sourcePath(id, "gain"), bytes.NewReader([]byte("not json")))
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func sourcePath(id mixer.SourceID, op string) string {
	return "/sources/" + itoaTest(uint32(id)) + "/" + op
}

func itoaTest(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
