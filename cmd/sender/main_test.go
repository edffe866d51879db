package main

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Cake-ims/grafana-live-image-panel/payload"
)

func TestParseBandwidth(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"", 0, true},
		{"800", 100, true},       // bare number is bits/sec
		{"56kbit", 7000, true},   // 56000 bits -> bytes
		{"1mbit", 125000, true},
		{"100KB", 100000, true},  // bytes with SI prefix
		{"2MB", 2000000, true},
		{"1.5mbit", 187500, true},
		{"10x", 0, false},
		{"fast", 0, false},
	}

	for _, tt := range tests {
		got, err := parseBandwidth(tt.in)
		if tt.ok != (err == nil) {
			t.Errorf("%q: err = %v, ok = %v", tt.in, err, tt.ok)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("%q: got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseFlagsProfile(t *testing.T) {
	cfg, err := parseFlags([]string{"--profile", "jpeg-250"})
	if err != nil {
		t.Fatalf("parseFlags failed: %v", err)
	}
	if cfg.Payload != "jpeg" || cfg.Quality != 50 || cfg.FPS != 10 {
		t.Errorf("profile not applied: %+v", cfg)
	}

	// Explicit flags win over the profile.
	cfg, err = parseFlags([]string{"--profile", "jpeg-250", "--fps", "25"})
	if err != nil {
		t.Fatalf("parseFlags failed: %v", err)
	}
	if cfg.FPS != 25 {
		t.Errorf("explicit --fps overridden: got %v", cfg.FPS)
	}

	if _, err := parseFlags([]string{"--profile", "warp-speed"}); err == nil {
		t.Error("unknown profile: expected error")
	}
}

func TestParseFlagsValidation(t *testing.T) {
	for _, args := range [][]string{
		{"--fps", "-1"},
		{"--size", "0"},
		{"--quality", "101"},
		{"--frames", "0"},
		{"--bandwidth", "lots"},
	} {
		if _, err := parseFlags(args); err == nil {
			t.Errorf("args %v: expected error", args)
		}
	}
}

func TestBuildSourceFormats(t *testing.T) {
	for _, format := range []string{"random", "jpeg", "pattern", "bmp", "lz4"} {
		cfg := &Config{Payload: format, Size: 512, Frames: 3}
		src, desc, err := buildSource(cfg)
		if err != nil {
			t.Fatalf("%s: buildSource failed: %v", format, err)
		}
		if desc == "" {
			t.Errorf("%s: empty description", format)
		}
		data, err := src(0)
		if err != nil {
			t.Fatalf("%s: source failed: %v", format, err)
		}
		if len(data) == 0 {
			t.Errorf("%s: empty payload", format)
		}
	}

	if _, _, err := buildSource(&Config{Payload: "tiff", Size: 1}); err == nil {
		t.Error("unknown format: expected error")
	}
}

func TestBuildSourcePatternCycles(t *testing.T) {
	cfg := &Config{Payload: "pattern", Frames: 2, Width: 64, Height: 48}
	src, _, err := buildSource(cfg)
	if err != nil {
		t.Fatalf("buildSource failed: %v", err)
	}

	f0, _ := src(0)
	f1, _ := src(1)
	f2, _ := src(2)
	if string(f0) == string(f1) {
		t.Error("consecutive pattern frames are identical")
	}
	if string(f0) != string(f2) {
		t.Error("cycle of 2 did not wrap at frame 2")
	}
}

func TestStreamHandlerServesPacedFrames(t *testing.T) {
	cfg := &Config{FPS: 200, Payload: "random", Size: 256}
	s := &streamServer{
		ctx:    context.Background(),
		cfg:    cfg,
		source: payload.Static(payload.Random(256)),
	}

	srv := httptest.NewServer(http.HandlerFunc(s.handle))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 5; i++ {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("frame %d: read failed: %v", i, err)
		}
		if mt != websocket.BinaryMessage {
			t.Errorf("frame %d: message type %d, want binary", i, mt)
		}
		if len(msg) != 256 {
			t.Errorf("frame %d: got %d bytes, want 256", i, len(msg))
		}
	}
	conn.Close()
}

// syncBuffer collects handler log output written from another goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var rateLineRe = regexp.MustCompile(`sending to .*: (\d+) msg/sec`)

// TestStreamHandlerReportsThroughput streams for just over a second and
// verifies the handler's own measurement output: a non-zero per-second rate
// line while frames flow, and a final summary once the client goes away.
func TestStreamHandlerReportsThroughput(t *testing.T) {
	var logBuf syncBuffer
	log.SetOutput(&logBuf)
	defer log.SetOutput(os.Stderr)

	cfg := &Config{FPS: 100, Payload: "random", Size: 512}
	s := &streamServer{
		ctx:    context.Background(),
		cfg:    cfg,
		source: payload.Static(payload.Random(512)),
	}

	srv := httptest.NewServer(http.HandlerFunc(s.handle))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	// Keep the stream alive past the one-second reporting interval.
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	frames := 0
	for deadline := time.Now().Add(1300 * time.Millisecond); time.Now().Before(deadline); {
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("read failed after %d frames: %v", frames, err)
		}
		frames++
	}
	conn.Close()
	srv.Close() // waits for the handler, so the summary line is in by now

	out := logBuf.String()
	m := rateLineRe.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no per-second rate line in sender log:\n%s", out)
	}
	if rate, _ := strconv.Atoi(m[1]); rate == 0 {
		t.Errorf("per-second line reports 0 msg/sec after %d delivered frames:\n%s", frames, out)
	}
	if !strings.Contains(out, "finished:") {
		t.Errorf("no final summary in sender log after %d delivered frames:\n%s", frames, out)
	}
}
