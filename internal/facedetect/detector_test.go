// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package facedetect

import (
	"path/filepath"
	"testing"

	"github.com/tomtom215/archivum/internal/config"
)

func TestSupported(t *testing.T) {
	tests := []struct {
		ext  string
		want bool
	}{
		{"jpg", true},
		{"jpeg", true},
		{"png", true},
		{"gif", false},
		{"mp4", false},
		{"", false},
		// Detection runs on the pre-normalized extension; aliases like
		// jfif are not eligible.
		{"jfif", false},
	}
	for _, tt := range tests {
		if got := Supported(tt.ext); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}

func TestNewMissingCascade(t *testing.T) {
	_, err := New(&config.FaceDetectionConfig{
		CascadePath: filepath.Join(t.TempDir(), "absent.cascade"),
	})
	if err == nil {
		t.Fatal("New with missing cascade file should fail")
	}
}

func TestClamp(t *testing.T) {
	if clamp(-3, 0, 10) != 0 {
		t.Error("clamp below")
	}
	if clamp(15, 0, 10) != 10 {
		t.Error("clamp above")
	}
	if clamp(7, 0, 10) != 7 {
		t.Error("clamp inside")
	}
}
