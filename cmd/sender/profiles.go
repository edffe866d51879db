package main

import (
	"fmt"
	"os"
	"sort"

	flag "github.com/spf13/pflag"
)

// profiles defines preset payload/pacing combinations for common test
// scenarios. Explicit flags override profile values.
var profiles = map[string]Config{
	// Plain byte throughput
	"random-1k": {
		Payload: "random",
		Size:    1024,
	},
	"soak": {
		Payload: "random",
		Size:    65536,
	},

	// Grayscale camera-style streams
	"jpeg-250": {
		Payload: "jpeg",
		Quality: 50,
		FPS:     10,
	},
	"camera": {
		Payload: "jpeg",
		Quality: 50,
		FPS:     30,
	},

	// Dashboard panel testing with visibly changing frames
	"panel": {
		Payload: "pattern",
		Quality: 85,
		FPS:     10,
	},

	// Uncompressed-path streams
	"raw-bmp": {
		Payload: "bmp",
		FPS:     30,
	},
	"raw-lz4": {
		Payload: "lz4",
		FPS:     30,
	},
}

// applyProfile copies preset values into cfg for every flag the user did not
// set explicitly.
func applyProfile(cfg *Config, fs *flag.FlagSet) error {
	p, ok := profiles[cfg.Profile]
	if !ok {
		return fmt.Errorf("unknown profile: %s", cfg.Profile)
	}

	if !fs.Changed("payload") && p.Payload != "" {
		cfg.Payload = p.Payload
	}
	if !fs.Changed("size") && p.Size != 0 {
		cfg.Size = p.Size
	}
	if !fs.Changed("quality") && p.Quality != 0 {
		cfg.Quality = p.Quality
	}
	if !fs.Changed("fps") && p.FPS != 0 {
		cfg.FPS = p.FPS
	}
	return nil
}

func printProfiles() {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stderr, "Available profiles:")
	for _, name := range names {
		p := profiles[name]
		line := fmt.Sprintf("  %-10s %s", name, p.Payload)
		if p.Size != 0 {
			line += fmt.Sprintf(", %d B", p.Size)
		}
		if p.Quality != 0 {
			line += fmt.Sprintf(", quality %d", p.Quality)
		}
		if p.FPS != 0 {
			line += fmt.Sprintf(", %g fps", p.FPS)
		} else {
			line += ", unlimited fps"
		}
		fmt.Fprintln(os.Stderr, line)
	}
}
