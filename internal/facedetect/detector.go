// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package facedetect finds faces in uploaded images so moderators get
// pre-drawn redaction boxes instead of drawing each one by hand.
package facedetect

import (
	"bytes"
	"fmt"
	"os"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"

	"github.com/tomtom215/archivum/internal/config"
	"github.com/tomtom215/archivum/internal/models"
)

// Detector wraps a pigo cascade classifier. Safe for concurrent use:
// RunCascade does not mutate the classifier.
type Detector struct {
	classifier *pigo.Pigo
	minSize    int
	minQuality float32
}

// detectableExtensions: face detection only runs on still images the
// decoder and cascade handle well.
var detectableExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
}

// Supported reports whether the (unnormalized) extension is eligible for
// face detection.
func Supported(ext string) bool {
	return detectableExtensions[ext]
}

// New loads the cascade file and builds the classifier.
func New(cfg *config.FaceDetectionConfig) (*Detector, error) {
	cascade, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade %s: %w", cfg.CascadePath, err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}

	minSize := cfg.MinSize
	if minSize <= 0 {
		minSize = 35
	}
	return &Detector{
		classifier: classifier,
		minSize:    minSize,
		minQuality: float32(cfg.MinQuality),
	}, nil
}

// Detect returns one box per face found in the image bytes, in the
// image's pixel space, clamped to the image bounds.
func (d *Detector) Detect(data []byte) ([]models.Box, error) {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	nrgba := imaging.Clone(src)
	bounds := nrgba.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()

	params := pigo.CascadeParams{
		MinSize:     d.minSize,
		MaxSize:     max(cols, rows),
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(nrgba),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, 0.2)

	var boxes []models.Box
	for _, det := range dets {
		if det.Q < d.minQuality {
			continue
		}
		half := det.Scale / 2
		box := models.Box{
			X1:     clamp(det.Col-half, 0, cols),
			Y1:     clamp(det.Row-half, 0, rows),
			X2:     clamp(det.Col+half, 0, cols),
			Y2:     clamp(det.Row+half, 0, rows),
			Width:  cols,
			Height: rows,
		}
		if box.Validate() != nil {
			continue
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
