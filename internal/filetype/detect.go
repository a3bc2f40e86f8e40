// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package filetype classifies uploaded byte streams into media kinds and
// extracts creation time and GPS coordinates from embedded metadata.
//
// Classification inspects content via MIME sniffing, not just the file
// extension. Metadata extraction never fails: a corrupt or unsupported
// container yields empty metadata.
package filetype

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/tomtom215/archivum/internal/models"
)

// documentExtensions map to KindText regardless of the sniffed type.
var documentExtensions = map[string]bool{
	"pdf":  true,
	"txt":  true,
	"odt":  true,
	"doc":  true,
	"docx": true,
}

// extAliases normalizes extension spellings for downstream format
// comparisons. The returned extension of Detect is NOT normalized.
var extAliases = map[string]string{
	"jpg":  "jpeg",
	"jpe":  "jpeg",
	"jif":  "jpeg",
	"jfif": "jpeg",
	"jfi":  "jpeg",
	"mov":  "quicktime",
	"qt":   "quicktime",
}

// Result is the outcome of content classification.
type Result struct {
	Kind MediaKindAlias

	// Subtype is the sniffed MIME subtype, e.g. "jpeg" or "quicktime".
	Subtype string

	// Ext is the file's extension as supplied (lowercased, no dot).
	Ext string
}

// MediaKindAlias keeps the models dependency in one place.
type MediaKindAlias = models.MediaKind

// Detect classifies raw file bytes. The filename contributes only the
// extension; content sniffing decides the top-level type.
//
// Rules:
//   - sniffed image/video/audio keep their kind, except a "wma" extension
//     always maps to Audio
//   - sniffed text, or a recognized document extension regardless of the
//     sniffed type, maps to Text
//   - everything else maps to Other
func Detect(data []byte, filename string) Result {
	m := mimetype.Detect(data)
	top, subtype := splitMIME(m.String())
	ext := extOf(filename)

	res := Result{Subtype: subtype, Ext: ext}
	switch {
	case ext == "wma" && isAV(top):
		res.Kind = models.KindAudio
	case top == "text" || documentExtensions[ext]:
		res.Kind = models.KindText
	case isAV(top):
		res.Kind = models.ParseKind(top)
	default:
		res.Kind = models.KindOther
	}
	return res
}

func isAV(top string) bool {
	return top == "image" || top == "video" || top == "audio"
}

// NormalizeExt maps extension aliases onto a canonical spelling for
// downstream comparisons (jpg/jfif/... -> jpeg, mov/qt -> quicktime).
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if canon, ok := extAliases[ext]; ok {
		return canon
	}
	return ext
}

// splitMIME splits "video/quicktime" into ("video", "quicktime").
func splitMIME(mime string) (top, subtype string) {
	// Strip optional parameters such as "; charset=utf-8".
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	parts := strings.SplitN(strings.TrimSpace(mime), "/", 2)
	if len(parts) != 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

// extOf extracts the lowercased extension without the dot.
func extOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Title derives a record title from a filename by dropping the extension.
func Title(filename string) string {
	base := filepath.Base(filename)
	if ext := filepath.Ext(base); ext != "" {
		return strings.TrimSuffix(base, ext)
	}
	return base
}
