// receiver connects to a streaming sender and measures receive throughput:
// one stats line per second and a final summary when the session ends.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/Cake-ims/grafana-live-image-panel/bench"
)

// Config holds all command-line configuration.
type Config struct {
	URL      string
	Duration time.Duration
	Verbose  bool
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

	fs := flag.NewFlagSet("receiver", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.SortFlags = false

	fs.StringVarP(&cfg.URL, "url", "u", "ws://localhost:8765", "WebSocket server URL")
	duration := fs.StringP("duration", "d", "", "How long to receive (e.g., 30s; default: until interrupt)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Show timestamps on stats lines")
	help := fs.BoolP("help", "h", false, "Show help")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "receiver - WebSocket streaming benchmark client")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Connects to a sender, measures receive throughput once per second,")
		fmt.Fprintln(os.Stderr, "and prints a final summary when the session ends.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: receiver [flags]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, "  receiver --url ws://localhost:8765")
		fmt.Fprintln(os.Stderr, "  receiver --duration 30s --verbose")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *help {
		fs.Usage()
		return cfg, flag.ErrHelp
	}

	if *duration != "" {
		d, err := time.ParseDuration(*duration)
		if err != nil {
			return nil, fmt.Errorf("invalid --duration: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid --duration: %v (must be > 0)", d)
		}
		cfg.Duration = d
	}
	return cfg, nil
}

func run(cfg *Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	fmt.Printf("connecting to %s...\n", cfg.URL)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connection error: %v\n", err)
		return 1
	}
	defer conn.Close()

	if cfg.Duration > 0 {
		fmt.Printf("connected, receiving for %v...\n", cfg.Duration)
	} else {
		fmt.Println("connected, receiving until interrupted...")
	}

	// Closing the connection is the only way to unblock a pending read.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	acc, err := bench.NewAccumulator(time.Now(), bench.DefaultReportInterval)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	pacer, err := bench.NewPacer(0) // the receive side never throttles
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	out := &statsPrinter{
		interactive: term.IsTerminal(int(os.Stdout.Fd())),
		verbose:     cfg.Verbose,
	}

	var closeReason error
	unit := func() (int, error) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			closeReason = err
			return 0, bench.ErrClosed
		}
		return len(msg), nil
	}

	runErr := pacer.Run(ctx, unit, func(n int) {
		acc.Record(n)
		if snap, ok := acc.MaybeSnapshot(time.Now()); ok {
			out.printSnapshot(snap)
		}
	})
	out.finishLine()

	switch {
	case errors.Is(runErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		fmt.Println("duration reached")
	case errors.Is(runErr, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		fmt.Println("interrupted")
	case closeReason != nil:
		fmt.Printf("connection closed: %v\n", closeReason)
	}

	if sum, ok := acc.Summary(time.Now()); ok {
		printSummary(os.Stdout, sum)
	}
	return 0
}

// statsPrinter writes the once-per-second line: in-place updates on an
// interactive terminal, one line per second when piped.
type statsPrinter struct {
	interactive bool
	verbose     bool
	dirty       bool
}

func (p *statsPrinter) printSnapshot(snap bench.Snapshot) {
	line := fmt.Sprintf("receiving: %7.2f msg/sec | %7.2f Mbps | total: %8.2f MB",
		snap.EventsPerSec, snap.BitsPerSec/1e6, float64(snap.TotalBytes)/(1024*1024))
	if p.verbose {
		line = time.Now().Format("15:04:05") + " " + line
	}
	if p.interactive {
		fmt.Printf("\r%s", line)
		p.dirty = true
	} else {
		fmt.Println(line)
	}
}

// finishLine terminates a pending in-place line before normal output resumes.
func (p *statsPrinter) finishLine() {
	if p.dirty {
		fmt.Println()
		p.dirty = false
	}
}

func printSummary(w *os.File, sum bench.Summary) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "FINAL STATISTICS")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total frames received: %d\n", sum.TotalEvents)
	fmt.Fprintf(w, "Total duration:        %.2f seconds\n", sum.Elapsed.Seconds())
	fmt.Fprintf(w, "Average FPS:           %.2f frames/second\n", sum.EventsPerSec)
	fmt.Fprintf(w, "Total data:            %.2f MB\n", float64(sum.TotalBytes)/(1024*1024))
	fmt.Fprintf(w, "Average frame size:    %.2f KB\n", sum.AvgSize/1024)
	fmt.Fprintf(w, "Min frame size:        %.2f KB\n", float64(sum.MinSize)/1024)
	fmt.Fprintf(w, "Max frame size:        %.2f KB\n", float64(sum.MaxSize)/1024)
	fmt.Fprintf(w, "Data rate:             %.2f Mbps\n", sum.BitsPerSec/1e6)
	fmt.Fprintln(w, rule)
}
