// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package filetype

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"
)

// QuickTime/MP4 metadata lives in the moov box: mvhd carries the creation
// time (seconds since 1904-01-01 UTC), udta/©xyz carries an ISO 6709
// location string such as "+52.5000+013.4000/".
//
// Only the handful of boxes needed here are walked; anything malformed
// aborts silently.

// qtEpoch is the QuickTime time origin.
var qtEpoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)

type qtMetadata struct {
	CreatedAt *time.Time
	Place     *Place
}

// extractQuickTime scans top-level boxes for moov and pulls creation time
// and location out of it. Returns nil when the data is not a QuickTime-style
// container.
func extractQuickTime(data []byte) *qtMetadata {
	moov := findBox(data, "moov")
	if moov == nil {
		return nil
	}
	md := &qtMetadata{}

	if mvhd := findBox(moov, "mvhd"); mvhd != nil {
		md.CreatedAt = mvhdCreationTime(mvhd)
	}
	if udta := findBox(moov, "udta"); udta != nil {
		if xyz := findBox(udta, "\xa9xyz"); xyz != nil {
			md.Place = parseISO6709(xyzString(xyz))
		}
	}
	if md.CreatedAt == nil && md.Place == nil {
		return nil
	}
	return md
}

// findBox scans sibling boxes in data and returns the payload of the first
// box with the given type, or nil.
func findBox(data []byte, boxType string) []byte {
	for len(data) >= 8 {
		size := uint64(binary.BigEndian.Uint32(data[0:4]))
		typ := string(data[4:8])
		headerLen := uint64(8)
		if size == 1 {
			if len(data) < 16 {
				return nil
			}
			size = binary.BigEndian.Uint64(data[8:16])
			headerLen = 16
		}
		if size < headerLen || size > uint64(len(data)) {
			return nil
		}
		if typ == boxType {
			return data[headerLen:size]
		}
		data = data[size:]
	}
	return nil
}

// mvhdCreationTime reads the creation time from an mvhd payload. Version 0
// uses 32-bit times, version 1 uses 64-bit.
func mvhdCreationTime(payload []byte) *time.Time {
	if len(payload) < 12 {
		return nil
	}
	version := payload[0]
	var secs uint64
	switch version {
	case 0:
		secs = uint64(binary.BigEndian.Uint32(payload[4:8]))
	case 1:
		if len(payload) < 20 {
			return nil
		}
		secs = binary.BigEndian.Uint64(payload[4:12])
	default:
		return nil
	}
	if secs == 0 {
		return nil
	}
	t := qtEpoch.Add(time.Duration(secs) * time.Second)
	return &t
}

// xyzString strips the 16-bit length and language prefix from a ©xyz
// payload.
func xyzString(payload []byte) string {
	if len(payload) < 4 {
		return ""
	}
	n := int(binary.BigEndian.Uint16(payload[0:2]))
	if n > len(payload)-4 {
		n = len(payload) - 4
	}
	return string(payload[4 : 4+n])
}

// parseISO6709 parses "+52.5000+013.4000/" style strings. The raw string is
// kept as the place name so the container's location is used verbatim.
func parseISO6709(s string) *Place {
	s = strings.TrimSuffix(strings.TrimSpace(s), "/")
	if s == "" {
		return nil
	}
	// Split on the sign of the longitude: find the second +/- sign.
	split := -1
	for i := 1; i < len(s); i++ {
		if s[i] == '+' || s[i] == '-' {
			split = i
			break
		}
	}
	if split < 0 {
		return nil
	}
	lat, err1 := strconv.ParseFloat(s[:split], 64)
	// Altitude may trail the longitude; cut at a third sign if present.
	lonStr := s[split:]
	for i := 1; i < len(lonStr); i++ {
		if lonStr[i] == '+' || lonStr[i] == '-' {
			lonStr = lonStr[:i]
			break
		}
	}
	lon, err2 := strconv.ParseFloat(lonStr, 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	return &Place{Name: s, Lat: lat, Lon: lon}
}
