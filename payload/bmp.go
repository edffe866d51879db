package payload

import (
	"encoding/binary"
	"image"
)

// BMP layout constants for an 8-bit paletted image. Pixel data sits at a
// fixed offset behind the two headers and the 256-entry grayscale palette.
const (
	bmpFileHeaderSize = 14
	bmpInfoHeaderSize = 40
	bmpPaletteSize    = 256 * 4
	bmpPixelOffset    = bmpFileHeaderSize + bmpInfoHeaderSize + bmpPaletteSize // 1078

	bmpPixelsPerMeter = 2835 // 72 DPI
)

// EncodeGray8 serializes an 8-bit grayscale image as a BMP byte stream:
// BITMAPFILEHEADER, BITMAPINFOHEADER, 256-entry grayscale palette, then
// bottom-up pixel rows padded to 4-byte boundaries. Encoder only; the
// receiving side of this path never decodes BMP.
func EncodeGray8(img *image.Gray) []byte {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	rowSize := (width + 3) &^ 3
	imageSize := rowSize * height

	out := make([]byte, bmpPixelOffset+imageSize)

	// BITMAPFILEHEADER
	out[0], out[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(out[2:6], uint32(len(out)))
	binary.LittleEndian.PutUint32(out[10:14], bmpPixelOffset)

	// BITMAPINFOHEADER
	binary.LittleEndian.PutUint32(out[14:18], bmpInfoHeaderSize)
	binary.LittleEndian.PutUint32(out[18:22], uint32(width))
	binary.LittleEndian.PutUint32(out[22:26], uint32(height)) // positive = bottom-up
	binary.LittleEndian.PutUint16(out[26:28], 1)              // planes
	binary.LittleEndian.PutUint16(out[28:30], 8)              // bits per pixel
	binary.LittleEndian.PutUint32(out[30:34], 0)              // BI_RGB, uncompressed
	binary.LittleEndian.PutUint32(out[34:38], uint32(imageSize))
	binary.LittleEndian.PutUint32(out[38:42], bmpPixelsPerMeter)
	binary.LittleEndian.PutUint32(out[42:46], bmpPixelsPerMeter)
	binary.LittleEndian.PutUint32(out[46:50], 256) // colors used
	binary.LittleEndian.PutUint32(out[50:54], 256) // important colors

	// Grayscale palette, BGR0 entries.
	for i := 0; i < 256; i++ {
		off := bmpFileHeaderSize + bmpInfoHeaderSize + i*4
		out[off] = byte(i)
		out[off+1] = byte(i)
		out[off+2] = byte(i)
	}

	// Rows are stored bottom-up.
	for y := 0; y < height; y++ {
		src := img.PixOffset(b.Min.X, b.Max.Y-1-y)
		dst := bmpPixelOffset + y*rowSize
		copy(out[dst:dst+width], img.Pix[src:src+width])
	}
	return out
}
