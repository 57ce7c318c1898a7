// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/gogpu/paste"
)

// Common errors returned by view/image conversions.
var (
	// ErrChannels is returned for a view with a channel count no image
	// type represents.
	ErrChannels = errors.New("imaging: unsupported channel count")

	// ErrElementType is returned for a non-uint8 view.
	ErrElementType = errors.New("imaging: only uint8 views convert to images")
)

// FromImage copies an image into a 4-channel RGBA view, or a 1-channel
// view for *image.Gray.
func FromImage(img image.Image) (paste.View, error) {
	b := img.Bounds()
	h, w := int64(b.Dy()), int64(b.Dx())

	if g, ok := img.(*image.Gray); ok {
		v, err := paste.NewView(paste.Uint8, h, w, 1)
		if err != nil {
			return paste.View{}, err
		}
		for y := 0; y < b.Dy(); y++ {
			copy(v.Row(int64(y)), g.Pix[y*g.Stride:y*g.Stride+b.Dx()])
		}
		return v, nil
	}

	rgba := toRGBA(img)
	v, err := paste.NewView(paste.Uint8, h, w, 4)
	if err != nil {
		return paste.View{}, err
	}
	for y := 0; y < b.Dy(); y++ {
		copy(v.Row(int64(y)), rgba.Pix[y*rgba.Stride:y*rgba.Stride+b.Dx()*4])
	}
	return v, nil
}

// FromImageScaled copies an image into a 4-channel RGBA view of the
// given size, resampling with bilinear interpolation.
func FromImageScaled(img image.Image, height, width int64) (paste.View, error) {
	if height <= 0 || width <= 0 {
		return paste.View{}, fmt.Errorf("%w: %dx%d", paste.ErrInvalidShape, height, width)
	}
	scaled := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)
	return FromImage(scaled)
}

// ToImage copies a uint8 view into an image: *image.Gray for 1 channel,
// *image.RGBA for 3 (opaque) or 4 channels.
func ToImage(v paste.View) (image.Image, error) {
	if v.Type != paste.Uint8 {
		return nil, fmt.Errorf("%w: %s", ErrElementType, v.Type)
	}
	h, w := int(v.Height), int(v.Width)

	switch v.Channels {
	case 1:
		img := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			copy(img.Pix[y*img.Stride:], v.Row(int64(y)))
		}
		return img, nil
	case 3:
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			row := v.Row(int64(y))
			for x := 0; x < w; x++ {
				img.SetRGBA(x, y, color.RGBA{R: row[x*3], G: row[x*3+1], B: row[x*3+2], A: 0xFF})
			}
		}
		return img, nil
	case 4:
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			copy(img.Pix[y*img.Stride:], v.Row(int64(y)))
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrChannels, v.Channels)
	}
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
