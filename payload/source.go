// Package payload produces the byte payloads streamed by the benchmark
// tools: random buffers, generated test-pattern images, grayscale JPEG,
// raw 8-bit BMP frames, and LZ4-compressed raw frames. The transport
// treats everything here as opaque bytes.
package payload

import (
	"crypto/rand"
	"errors"
)

// Source yields the payload for one frame. The frame counter starts at zero
// and increments once per send; cyclic sources index it modulo their length.
type Source func(frame int) ([]byte, error)

// Static serves the same pre-computed buffer for every frame.
func Static(data []byte) Source {
	return func(int) ([]byte, error) {
		return data, nil
	}
}

// Cycle serves pre-rendered frames in order, wrapping around at the end.
func Cycle(frames [][]byte) Source {
	return func(frame int) ([]byte, error) {
		if len(frames) == 0 {
			return nil, errors.New("payload: empty frame cycle")
		}
		return frames[frame%len(frames)], nil
	}
}

// Random returns n cryptographically random bytes, the fallback payload when
// no image is configured.
func Random(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}
