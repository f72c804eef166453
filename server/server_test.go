package server_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vsariola/chiptone"
	"github.com/vsariola/chiptone/server"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := httptest.NewServer(server.New(server.Config{Render: chiptone.Config{SampleRate: 8000}}, logger))
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, contentType string, body []byte) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %v failed: %v", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("could not read response: %v", err)
	}
	return resp, data
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
}

func TestRenderSoundEffect(t *testing.T) {
	ts := newTestServer(t)
	body := []byte(`{"waveform": "square", "startFrequency": 880, "endFrequency": 440, "duration": 0.2, "gain": 0.2}`)
	resp, wav := post(t, ts.URL+"/render/sfx", "application/json", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, wav)
	}
	if resp.Header.Get("Content-Type") != "audio/wav" {
		t.Fatalf("content type %q", resp.Header.Get("Content-Type"))
	}
	if string(wav[:4]) != "RIFF" || binary.LittleEndian.Uint32(wav[40:]) != 1600*2 {
		t.Fatalf("unexpected wav header % x", wav[:44])
	}
}

func TestRenderSongWithEffects(t *testing.T) {
	ts := newTestServer(t)
	song := []byte("bpm: 120\ntracks:\n  - slots: [C4, E4, G4, C5]\n")
	resp, wav := post(t, ts.URL+"/render/song?effect=reverb&effect=gain&gain.amount=0.5", "application/yaml", song)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, wav)
	}
	// 4 steps of 0.125 s at 8 kHz, mono
	if got := binary.LittleEndian.Uint32(wav[40:]); got != 4000*2 {
		t.Fatalf("data length %d, want %d", got, 4000*2)
	}
}

func TestRenderGrid(t *testing.T) {
	ts := newTestServer(t)
	grid := []byte("bpm: 120\nsteps: 8\ncells:\n  - {pitch: C4, step: 0}\n")
	resp, wav := post(t, ts.URL+"/render/grid?loops=2", "application/yaml", grid)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, wav)
	}
	if got := binary.LittleEndian.Uint32(wav[40:]); got != 2*8000*2 {
		t.Fatalf("data length %d, want %d", got, 2*8000*2)
	}
}

func TestInvalidInputIsBadRequest(t *testing.T) {
	ts := newTestServer(t)
	for _, c := range []struct{ path, body string }{
		{"/render/song", "bpm: 120\ntracks:\n  - slots: [C4, E4]\n  - slots: [C4]\n"},
		{"/render/sfx", `{"waveform": "sine", "startFrequency": 440, "endFrequency": 440, "duration": 0}`},
		{"/render/grid?loops=x", "bpm: 120\n"},
		{"/fx/echo", "not a wav file"},
		{"/render/song?effect=echo&echo.delay=abc", "bpm: 120\ntracks:\n  - slots: [C4]\n"},
	} {
		path := c.path
		resp, data := post(t, ts.URL+path, "text/plain", []byte(c.body))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: status %d, want 400 (%s)", path, resp.StatusCode, data)
		}
	}
}

func TestEffect(t *testing.T) {
	ts := newTestServer(t)
	src := chiptone.NewAudioBuffer(1, 800, 8000)
	src.Channels[0][0] = 0.5
	wav, err := src.Wav()
	if err != nil {
		t.Fatalf("Wav failed: %v", err)
	}
	resp, out := post(t, ts.URL+"/fx/echo?delay=0.01&feedback=0.5", "audio/wav", wav)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, out)
	}
	decoded, err := chiptone.ReadWav(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("ReadWav failed: %v", err)
	}
	if decoded.Frames() != 800+80*7 {
		t.Fatalf("echo output has %d frames, want %d", decoded.Frames(), 800+80*7)
	}
	resp, out = post(t, ts.URL+"/fx/old-radio", "audio/wav", wav)
	if resp.StatusCode != http.StatusOK || !bytes.Equal(out, wav) {
		t.Fatalf("unknown effect should return the recording unchanged (status %d)", resp.StatusCode)
	}
}

func TestMIDI(t *testing.T) {
	ts := newTestServer(t)
	resp, mid := post(t, ts.URL+"/midi/song", "application/yaml", []byte("bpm: 100\ntracks:\n  - slots: [A4, '', C5]\n"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, mid)
	}
	if !strings.HasPrefix(string(mid), "MThd") {
		t.Fatalf("response is not a midi file")
	}
}
