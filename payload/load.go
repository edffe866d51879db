package payload

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
)

// LoadGray reads an image file (BMP, JPEG, or PNG) and converts it to 8-bit
// grayscale.
func LoadGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if gray, ok := src.(*image.Gray); ok {
		return gray, nil
	}
	gray := image.NewGray(src.Bounds())
	draw.Draw(gray, gray.Bounds(), src, src.Bounds().Min, draw.Src)
	return gray, nil
}

// LoadGrayJPEG reads an image file, converts it to 8-bit grayscale, and
// re-encodes it as JPEG at the given quality.
func LoadGrayJPEG(path string, quality int) ([]byte, error) {
	gray, err := LoadGray(path)
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(gray, quality)
}

// FirstBMP returns the path of the first BMP file in dir, in sorted order
// and case-insensitive on the extension.
func FirstBMP(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".bmp") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no BMP files found in %s", dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}
