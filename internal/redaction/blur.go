// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package redaction pixelates and restores rectangular regions of preview
// images. The original file is never touched: blurring rewrites the
// preview derivative, and unblurring re-derives the region's pixels from
// the untouched original.
package redaction

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/tomtom215/archivum/internal/logging"
	"github.com/tomtom215/archivum/internal/models"
)

// jpegQuality for re-encoded previews.
const jpegQuality = 90

// Blur pixelates the box region of the preview image and returns the
// rewritten JPEG. Box coordinates are taken in the displayed (EXIF
// orientation applied) pixel space, so the image is rotated upright
// first and rotated back before saving.
func Blur(preview []byte, box models.Box) ([]byte, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}

	img, orientDeg, err := decodeUpright(preview)
	if err != nil {
		return nil, err
	}

	rect := image.Rect(box.X1, box.Y1, box.X2, box.Y2)
	region := imaging.Crop(img, rect)
	blurred := boxBlur(region, blurRadius(box))
	out := imaging.Paste(img, blurred, rect.Min)

	return encodeRestored(out, orientDeg, preview)
}

// Unblur restores the box region of the preview from the original file's
// pixels. For image records the preview is a byte copy of the original,
// so the region transplant is exact.
func Unblur(preview, original []byte, box models.Box) ([]byte, error) {
	if err := box.Validate(); err != nil {
		return nil, err
	}

	previewImg, orientDeg, err := decodeUpright(preview)
	if err != nil {
		return nil, err
	}
	originalImg, _, err := decodeUpright(original)
	if err != nil {
		return nil, fmt.Errorf("decode original: %w", err)
	}

	rect := image.Rect(box.X1, box.Y1, box.X2, box.Y2)
	region := imaging.Crop(originalImg, rect)
	out := imaging.Paste(previewImg, region, rect.Min)

	return encodeRestored(out, orientDeg, preview)
}

// blurRadius scales the blur with the region so small boxes still smear
// and large ones are fully unrecognizable.
func blurRadius(box models.Box) int {
	w := box.X2 - box.X1
	h := box.Y2 - box.Y1
	r := (w + h) / 20
	if r < 5 {
		r = 5
	}
	return r
}

// boxBlur applies a separable mean filter: every output pixel averages
// the (2r+1)-wide window around it, clamped at the region edges.
func boxBlur(src *image.NRGBA, radius int) *image.NRGBA {
	return blurPass(blurPass(src, radius, true), radius, false)
}

func blurPass(src *image.NRGBA, radius int, horizontal bool) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	n := 2*radius + 1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var r, g, bl, a int
			for d := -radius; d <= radius; d++ {
				sx, sy := x, y
				if horizontal {
					sx = clampInt(x+d, b.Min.X, b.Max.X-1)
				} else {
					sy = clampInt(y+d, b.Min.Y, b.Max.Y-1)
				}
				i := src.PixOffset(sx, sy)
				r += int(src.Pix[i])
				g += int(src.Pix[i+1])
				bl += int(src.Pix[i+2])
				a += int(src.Pix[i+3])
			}
			i := dst.PixOffset(x, y)
			dst.Pix[i] = uint8(r / n)
			dst.Pix[i+1] = uint8(g / n)
			dst.Pix[i+2] = uint8(bl / n)
			dst.Pix[i+3] = uint8(a / n)
		}
	}
	return dst
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// decodeUpright decodes a JPEG and rotates it upright per its EXIF
// orientation tag. It returns the counter-clockwise degrees applied, so
// the caller can undo the rotation before saving.
func decodeUpright(data []byte) (image.Image, int, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("decode image: %w", err)
	}

	deg := orientationDegrees(data)
	switch deg {
	case 90:
		img = imaging.Rotate90(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate270(img)
	}
	return img, deg, nil
}

// orientationDegrees maps the EXIF orientation tag to the
// counter-clockwise rotation that uprights the image. Only the three
// rotation-without-flip orientations occur in camera output.
func orientationDegrees(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0
	}
	switch v {
	case 3:
		return 180
	case 6:
		return 270
	case 8:
		return 90
	}
	return 0
}

// encodeRestored undoes the upright rotation, encodes JPEG and carries
// the source's EXIF segment over so orientation-aware viewers keep
// displaying the preview correctly.
func encodeRestored(img image.Image, orientDeg int, source []byte) ([]byte, error) {
	switch orientDeg {
	case 90:
		img = imaging.Rotate270(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}

	out, err := spliceEXIF(buf.Bytes(), source)
	if err != nil {
		// Losing metadata beats losing the redaction.
		logging.Warn().Err(err).Msg("could not carry EXIF into rewritten preview")
		return buf.Bytes(), nil
	}
	return out, nil
}
