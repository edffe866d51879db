package payload

import (
	"bytes"
	"encoding/binary"
	"image"

	"github.com/pierrec/lz4/v4"
)

// lz4HeaderSize prefixes each compressed frame with the image dimensions so
// a viewer can size its buffers: width uint32 LE, height uint32 LE.
const lz4HeaderSize = 8

// CompressGray packs an 8-bit grayscale image as a dimension header followed
// by an LZ4 frame of the raw pixel rows. Encoder only, matching the BMP path.
func CompressGray(img *image.Gray) ([]byte, error) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	var buf bytes.Buffer
	var hdr [lz4HeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(width))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(height))
	buf.Write(hdr[:])

	zw := lz4.NewWriter(&buf)
	for y := 0; y < height; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		if _, err := zw.Write(img.Pix[off : off+width]); err != nil {
			zw.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
