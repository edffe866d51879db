// sender is the WebSocket streaming side of the benchmark: it serves every
// connected client its own paced stream of frames (random bytes, grayscale
// JPEG, test patterns, raw BMP, or LZ4-compressed raw frames) and prints
// per-client throughput once per second.
package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	flag "github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/Cake-ims/grafana-live-image-panel/bench"
	"github.com/Cake-ims/grafana-live-image-panel/payload"
)

const (
	// Cap the token bucket burst so a bandwidth-limited stream cannot open
	// with a huge frame dump.
	maxBurstSize = 65536

	shutdownTimeout = 5 * time.Second
)

// Config holds all command-line configuration.
type Config struct {
	Host string
	Port int

	FPS       float64
	Bandwidth int64 // bytes per second, 0 = uncapped

	Payload string // random | jpeg | pattern | bmp | lz4
	Size    int
	Quality int // 0 = format default
	Width   int // 0 = format default
	Height  int
	Frames  int
	Image   string // image file, or directory of BMPs

	Profile string
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(run(cfg))
}

func parseFlags(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("sender", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.SortFlags = false

	fs.StringVar(&cfg.Host, "host", "localhost", "Host interface to listen on")
	fs.IntVar(&cfg.Port, "port", 8765, "Port to listen on")
	fs.Float64Var(&cfg.FPS, "fps", 0, "Target frames per second (0 = unlimited)")
	bandwidth := fs.StringP("bandwidth", "b", "", "Per-client byte-rate cap (e.g., 56kbit, 1mbit, 100KB)")
	fs.StringVar(&cfg.Payload, "payload", "random", "Payload format: random, jpeg, pattern, bmp, lz4")
	fs.IntVar(&cfg.Size, "size", 1024, "Random payload size in bytes")
	fs.IntVarP(&cfg.Quality, "quality", "q", 0, "JPEG quality 1-100 (0 = format default)")
	fs.IntVar(&cfg.Width, "width", 0, "Frame width in pixels (0 = format default)")
	fs.IntVar(&cfg.Height, "height", 0, "Frame height in pixels (0 = format default)")
	fs.IntVar(&cfg.Frames, "frames", 100, "Distinct frames in a pattern cycle")
	fs.StringVarP(&cfg.Image, "image", "i", "", "Image file, or directory containing BMP images")
	fs.StringVarP(&cfg.Profile, "profile", "p", "", "Payload profile (see below)")
	help := fs.BoolP("help", "h", false, "Show help")
	listProfiles := fs.BoolP("list-profiles", "L", false, "List available profiles")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "sender - WebSocket image/byte streaming benchmark server")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Streams one paced payload stream per connected client and prints")
		fmt.Fprintln(os.Stderr, "per-client throughput once per second.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: sender [flags]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  sender --payload jpeg --image ./images --fps 10")
		fmt.Fprintln(os.Stderr, "  sender --payload random --size 65536")
		fmt.Fprintln(os.Stderr, "  sender --profile panel --port 9000")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Bandwidth formats: 100, 100bps, 56kbit, 56k, 1mbit, 100KB")
		fmt.Fprintln(os.Stderr, "  k=1000 (SI units), not 1024")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *help {
		fs.Usage()
		return cfg, flag.ErrHelp
	}
	if *listProfiles {
		printProfiles()
		return cfg, flag.ErrHelp
	}

	if cfg.Profile != "" {
		if err := applyProfile(cfg, fs); err != nil {
			return nil, err
		}
	}

	if *bandwidth != "" {
		rateBytes, err := parseBandwidth(*bandwidth)
		if err != nil {
			return nil, fmt.Errorf("invalid --bandwidth: %w", err)
		}
		cfg.Bandwidth = rateBytes
	}

	if cfg.FPS < 0 {
		return nil, fmt.Errorf("invalid --fps: %v (must be >= 0)", cfg.FPS)
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("invalid --size: %d (must be > 0)", cfg.Size)
	}
	if cfg.Quality < 0 || cfg.Quality > 100 {
		return nil, fmt.Errorf("invalid --quality: %d (must be 0-100)", cfg.Quality)
	}
	if cfg.Frames <= 0 {
		return nil, fmt.Errorf("invalid --frames: %d (must be > 0)", cfg.Frames)
	}
	return cfg, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// streamServer serves one independent paced stream per client connection.
// Per-connection state (pacer, accumulator, frame counter, limiter) lives in
// the handler goroutine; nothing is shared between clients.
type streamServer struct {
	ctx    context.Context
	cfg    *Config
	source payload.Source
}

func (s *streamServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("upgrade:", err)
		return
	}
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	log.Printf("client connected from %s", remote)

	// Drain anything the client sends so close and ping control frames
	// keep getting processed.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	pacer, err := bench.NewPacer(s.cfg.FPS)
	if err != nil {
		log.Printf("client %s: %v", remote, err)
		return
	}
	acc, err := bench.NewAccumulator(time.Now(), bench.DefaultReportInterval)
	if err != nil {
		log.Printf("client %s: %v", remote, err)
		return
	}
	limiter := newLimiter(s.cfg.Bandwidth)

	frame := 0
	unit := func() (int, error) {
		data, err := s.source(frame)
		if err != nil {
			return 0, err
		}
		frame++
		if limiter != nil {
			if err := waitBandwidth(s.ctx, limiter, len(data)); err != nil {
				return 0, err
			}
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			log.Printf("client %s disconnected: %v", remote, err)
			return 0, bench.ErrClosed
		}
		return len(data), nil
	}

	err = pacer.Run(s.ctx, unit, func(n int) {
		acc.Record(n)
		if snap, ok := acc.MaybeSnapshot(time.Now()); ok {
			log.Printf("sending to %s: %.0f msg/sec | %.2f Mbps",
				remote, snap.EventsPerSec, snap.BitsPerSec/1e6)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("client %s: %v", remote, err)
	}

	if sum, ok := acc.Summary(time.Now()); ok {
		log.Printf("client %s finished: %d frames in %.2fs | %.2f fps avg | %.2f Mbps",
			remote, sum.TotalEvents, sum.Elapsed.Seconds(), sum.EventsPerSec, sum.BitsPerSec/1e6)
	}
}

// newLimiter builds the per-connection bandwidth limiter. Burst is 100ms of
// data, capped at 64KB.
func newLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	burst := int(bytesPerSec / 10)
	if burst < 1 {
		burst = 1
	}
	if burst > maxBurstSize {
		burst = maxBurstSize
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// waitBandwidth reserves tokens for n bytes in burst-sized pieces, since a
// single frame may exceed the bucket's burst.
func waitBandwidth(ctx context.Context, l *rate.Limiter, n int) error {
	burst := l.Burst()
	for n > 0 {
		take := n
		if take > burst {
			take = burst
		}
		if err := l.WaitN(ctx, take); err != nil {
			return err
		}
		n -= take
	}
	return nil
}

func run(cfg *Config) int {
	source, desc, err := buildSource(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mux := http.NewServeMux()
	mux.HandleFunc("/", (&streamServer{ctx: ctx, cfg: cfg, source: source}).handle)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on ws://%s", addr)
	log.Printf("payload: %s", desc)
	if cfg.FPS > 0 {
		log.Printf("target FPS: %g", cfg.FPS)
	} else {
		log.Printf("target FPS: unlimited")
	}
	if cfg.Bandwidth > 0 {
		log.Printf("bandwidth cap: %d bytes/sec per client", cfg.Bandwidth)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	log.Println("server stopped")
	return 0
}

// buildSource turns the payload configuration into a Source and a
// human-readable description for the startup log.
func buildSource(cfg *Config) (payload.Source, string, error) {
	switch cfg.Payload {
	case "random":
		data := payload.Random(cfg.Size)
		return payload.Static(data), fmt.Sprintf("random bytes, %d B", len(data)), nil

	case "jpeg":
		quality := cfg.Quality
		if quality == 0 {
			quality = payload.GrayQuality
		}
		if cfg.Image != "" {
			path, err := resolveImage(cfg.Image)
			if err == nil {
				var data []byte
				if data, err = payload.LoadGrayJPEG(path, quality); err == nil {
					desc := fmt.Sprintf("grayscale JPEG from %s, %.2f KB (quality=%d)",
						path, float64(len(data))/1024, quality)
					return payload.Static(data), desc, nil
				}
			}
			// Same fallback as the original sender: keep going with
			// random bytes when the image cannot be used.
			log.Printf("failed to load image (%v), falling back to random bytes", err)
			data := payload.Random(cfg.Size)
			return payload.Static(data), fmt.Sprintf("random bytes, %d B", len(data)), nil
		}
		w, h := frameDims(cfg, payload.GrayWidth, payload.GrayHeight)
		data, err := payload.EncodeJPEG(payload.GrayImage(w, h), quality)
		if err != nil {
			return nil, "", err
		}
		desc := fmt.Sprintf("generated grayscale JPEG %dx%d, %.2f KB (quality=%d)",
			w, h, float64(len(data))/1024, quality)
		return payload.Static(data), desc, nil

	case "pattern":
		quality := cfg.Quality
		if quality == 0 {
			quality = payload.PatternQuality
		}
		w, h := frameDims(cfg, payload.PatternWidth, payload.PatternHeight)
		frames := make([][]byte, cfg.Frames)
		for i := range frames {
			data, err := payload.EncodeJPEG(payload.PatternImage(w, h, i), quality)
			if err != nil {
				return nil, "", err
			}
			frames[i] = data
		}
		desc := fmt.Sprintf("pattern cycle of %d JPEG frames %dx%d (quality=%d)",
			len(frames), w, h, quality)
		return payload.Cycle(frames), desc, nil

	case "bmp":
		gray, err := grayFrame(cfg)
		if err != nil {
			return nil, "", err
		}
		data := payload.EncodeGray8(gray)
		desc := fmt.Sprintf("raw 8-bit BMP %dx%d, %.2f KB",
			gray.Bounds().Dx(), gray.Bounds().Dy(), float64(len(data))/1024)
		return payload.Static(data), desc, nil

	case "lz4":
		gray, err := grayFrame(cfg)
		if err != nil {
			return nil, "", err
		}
		data, err := payload.CompressGray(gray)
		if err != nil {
			return nil, "", err
		}
		desc := fmt.Sprintf("LZ4 raw frame %dx%d, %.2f KB compressed",
			gray.Bounds().Dx(), gray.Bounds().Dy(), float64(len(data))/1024)
		return payload.Static(data), desc, nil

	default:
		return nil, "", fmt.Errorf("unknown payload format: %s", cfg.Payload)
	}
}

func grayFrame(cfg *Config) (*image.Gray, error) {
	if cfg.Image != "" {
		path, err := resolveImage(cfg.Image)
		if err != nil {
			return nil, err
		}
		return payload.LoadGray(path)
	}
	w, h := frameDims(cfg, payload.GrayWidth, payload.GrayHeight)
	return payload.GrayImage(w, h), nil
}

func frameDims(cfg *Config, defWidth, defHeight int) (int, int) {
	w, h := cfg.Width, cfg.Height
	if w <= 0 {
		w = defWidth
	}
	if h <= 0 {
		h = defHeight
	}
	return w, h
}

// resolveImage accepts either an image file or a directory, in which case
// the first BMP in sorted order is used.
func resolveImage(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return payload.FirstBMP(path)
	}
	return path, nil
}
