// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package redaction

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	errNotJPEG = errors.New("not a JPEG stream")
	errNoEXIF  = errors.New("no EXIF segment")
)

var (
	soiMarker  = []byte{0xFF, 0xD8}
	exifHeader = []byte("Exif\x00\x00")
)

// spliceEXIF copies the EXIF APP1 segment from source into a freshly
// encoded JPEG, after SOI and any APP0. Returns errNoEXIF when the
// source carries none.
func spliceEXIF(encoded, source []byte) ([]byte, error) {
	seg, err := findEXIFSegment(source)
	if err != nil {
		return nil, err
	}

	insertAt, err := segmentInsertionPoint(encoded)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(encoded)+len(seg))
	out = append(out, encoded[:insertAt]...)
	out = append(out, seg...)
	out = append(out, encoded[insertAt:]...)
	return out, nil
}

// findEXIFSegment returns the complete APP1 EXIF segment (marker, length
// and payload) from a JPEG stream.
func findEXIFSegment(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, soiMarker) {
		return nil, errNotJPEG
	}

	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xFF {
			return nil, errNoEXIF
		}
		marker := data[pos+1]
		// SOS starts entropy-coded data; no more metadata segments.
		if marker == 0xDA {
			return nil, errNoEXIF
		}
		length := int(data[pos+2])<<8 | int(data[pos+3])
		end := pos + 2 + length
		if length < 2 || end > len(data) {
			return nil, fmt.Errorf("segment %#x: bad length %d", marker, length)
		}
		if marker == 0xE1 && bytes.HasPrefix(data[pos+4:end], exifHeader) {
			return data[pos:end], nil
		}
		pos = end
	}
	return nil, errNoEXIF
}

// segmentInsertionPoint returns the offset where an APP1 segment belongs:
// after SOI, and after a leading JFIF APP0 when present.
func segmentInsertionPoint(data []byte) (int, error) {
	if !bytes.HasPrefix(data, soiMarker) {
		return 0, errNotJPEG
	}
	pos := 2
	if pos+4 <= len(data) && data[pos] == 0xFF && data[pos+1] == 0xE0 {
		length := int(data[pos+2])<<8 | int(data[pos+3])
		if length >= 2 && pos+2+length <= len(data) {
			pos += 2 + length
		}
	}
	return pos, nil
}
