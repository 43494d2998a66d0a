package api

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strconv"

	"golang.org/x/image/draw"
)

const (
	defaultIconSize = 32
	maxIconSize     = 512
)

// iconSize parses the ?size= query value
func iconSize(raw string) (int, error) {
	if raw == "" {
		return defaultIconSize, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size <= 0 || size > maxIconSize {
		return 0, fmt.Errorf("icon size must be between 1 and %d", maxIconSize)
	}
	return size, nil
}

// scaleIcon fits src into a size x size square, keeping its aspect ratio
func scaleIcon(src image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	b := src.Bounds()
	if b.Empty() {
		return dst
	}

	w, h := size, size
	if b.Dx() > b.Dy() {
		h = max(1, size*b.Dy()/b.Dx())
	} else if b.Dy() > b.Dx() {
		w = max(1, size*b.Dx()/b.Dy())
	}
	x0, y0 := (size-w)/2, (size-h)/2

	draw.CatmullRom.Scale(dst, image.Rect(x0, y0, x0+w, y0+h), src, b, draw.Over, nil)
	return dst
}

// encodeIcon scales src and encodes it as PNG
func encodeIcon(src image.Image, size int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaleIcon(src, size)); err != nil {
		return nil, fmt.Errorf("failed to encode icon: %w", err)
	}
	return buf.Bytes(), nil
}
