package main

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
)

// toRGBA normalizes a decoded frame to RGBA so blending can operate
// on a flat byte layout regardless of the camera's JPEG subsampling.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// blendRGBA computes out = incoming*w + outgoing*(1-w) per channel,
// rounded to nearest. Both images must have identical bounds; the
// mixer guarantees this via its dimension checks. Fixed-point 16.16
// weights keep the per-pixel work to integer math.
func blendRGBA(outgoing, incoming *image.RGBA, w float64) *image.RGBA {
	if w <= 0 {
		return outgoing
	}
	if w >= 1 {
		return incoming
	}
	wi := uint32(w*65536 + 0.5)
	wo := uint32(65536) - wi

	out := image.NewRGBA(outgoing.Rect)
	for i := range out.Pix {
		out.Pix[i] = uint8((uint32(outgoing.Pix[i])*wo + uint32(incoming.Pix[i])*wi + 32768) >> 16)
	}
	return out
}

// encodeJPEG encodes a mixed frame at the output quality.
func encodeJPEG(img image.Image) (*Frame, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: MixedJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode mixed frame: %w", err)
	}
	return &Frame{Data: buf.Bytes(), ContentType: "image/jpeg"}, nil
}

// placeholderFrame builds a black frame of the given size, used when
// no source can contribute pixels. The output clock never stalls on
// missing sources.
func placeholderFrame(dims image.Point) *Frame {
	if dims.X <= 0 || dims.Y <= 0 {
		dims = image.Pt(640, 480)
	}
	f, err := encodeJPEG(image.NewRGBA(image.Rect(0, 0, dims.X, dims.Y)))
	if err != nil {
		// encoding an all-black RGBA image cannot fail at runtime
		panic(err)
	}
	return f
}
