package x11

import (
	"image"
	"image/color"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// preferredIconSize is the _NET_WM_ICON size picked when several are offered
const preferredIconSize = 64

type iconEntry struct {
	img image.Image
}

// iconFor returns the cached icon for bundle, reading _NET_WM_ICON from win on
// first use. A missing icon is cached too.
func (b *Backend) iconFor(bundle string, win xproto.Window) image.Image {
	b.iconMu.Lock()
	defer b.iconMu.Unlock()

	if entry, ok := b.icons[bundle]; ok {
		return entry.img
	}

	var img image.Image
	if icons, err := ewmh.WmIconGet(b.xu, win); err == nil {
		if best, ok := pickIcon(icons, preferredIconSize); ok {
			img = argbToImage(best.Width, best.Height, best.Data)
		}
	}
	b.icons[bundle] = iconEntry{img: img}
	return img
}

// pickIcon picks the smallest icon at least size wide, else the largest one
func pickIcon(icons []ewmh.WmIcon, size uint) (ewmh.WmIcon, bool) {
	var best ewmh.WmIcon
	found := false
	for _, icon := range icons {
		if icon.Width == 0 || icon.Height == 0 || uint(len(icon.Data)) < icon.Width*icon.Height {
			continue
		}
		if !found {
			best, found = icon, true
			continue
		}
		switch {
		case best.Width < size && icon.Width > best.Width:
			best = icon
		case icon.Width >= size && icon.Width < best.Width:
			best = icon
		}
	}
	return best, found
}

// argbToImage converts packed 0xAARRGGBB pixels into an image
func argbToImage(width, height uint, data []uint) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, int(width), int(height)))
	for y := 0; y < int(height); y++ {
		for x := 0; x < int(width); x++ {
			p := data[y*int(width)+x]
			img.SetNRGBA(x, y, color.NRGBA{
				A: uint8(p >> 24),
				R: uint8(p >> 16),
				G: uint8(p >> 8),
				B: uint8(p),
			})
		}
	}
	return img
}
