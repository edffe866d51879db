package payload

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
)

// Default dimensions and JPEG qualities of the generated test images.
const (
	PatternWidth  = 640
	PatternHeight = 480
	GrayWidth     = 250
	GrayHeight    = 250

	PatternQuality = 85
	GrayQuality    = 50

	patternGrid = 50
	grayGrid    = 25
)

// PatternImage generates a color test frame: a background that encodes the
// frame number and a white grid on top, so consecutive frames are visibly
// distinct on a viewing panel.
func PatternImage(width, height, frame int) *image.RGBA {
	bg := color.RGBA{
		R: uint8(frame % 255),
		G: uint8(frame * 2 % 255),
		B: uint8(frame * 3 % 255),
		A: 255,
	}
	white := color.RGBA{255, 255, 255, 255}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			// Grid lines every 50px, 2px wide.
			if x%patternGrid < 2 || y%patternGrid < 2 {
				img.SetRGBA(x, y, white)
			} else {
				img.SetRGBA(x, y, bg)
			}
		}
	}
	return img
}

// GrayImage generates the 8-bit grayscale test frame: medium gray background
// with a white grid every 25px.
func GrayImage(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(128)
			if x%grayGrid == 0 || y%grayGrid == 0 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// EncodeJPEG compresses an image at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
