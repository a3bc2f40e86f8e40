// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package filetype

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestDMSValue(t *testing.T) {
	tests := []struct {
		name string
		rats [3][2]int64
		want float64
	}{
		{"whole degrees", [3][2]int64{{52, 1}, {30, 1}, {0, 1}}, 52.5},
		{"seconds", [3][2]int64{{10, 1}, {0, 1}, {36, 1}}, 10.01},
		{"rational degrees", [3][2]int64{{105, 2}, {0, 1}, {0, 1}}, 52.5},
		{"zero denominators guarded", [3][2]int64{{52, 0}, {30, 0}, {0, 0}}, 0},
		{"partial zero denominator", [3][2]int64{{52, 1}, {30, 0}, {0, 1}}, 52},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dmsValue(tt.rats); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("dmsValue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractMetadata_Garbage(t *testing.T) {
	md := ExtractMetadata([]byte("definitely not a media container"))
	if md.CreatedAt != nil || md.GPS != nil || md.Place != nil {
		t.Errorf("garbage input should yield empty metadata, got %+v", md)
	}
}

func TestExtractMetadata_Empty(t *testing.T) {
	md := ExtractMetadata(nil)
	if md.CreatedAt != nil || md.GPS != nil || md.Place != nil {
		t.Errorf("nil input should yield empty metadata, got %+v", md)
	}
}

// box builds a QuickTime box with the given type and payload.
func box(typ string, payload []byte) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint32(8+len(payload)))
	buf.WriteString(typ)
	buf.Write(payload)
	return buf.Bytes()
}

func TestExtractQuickTime_CreationTime(t *testing.T) {
	// mvhd v0: version+flags (4), creation (4), modification (4), ...
	created := time.Date(2019, 6, 1, 12, 0, 0, 0, time.UTC)
	secs := uint32(created.Sub(qtEpoch) / time.Second)

	mvhd := make([]byte, 100)
	binary.BigEndian.PutUint32(mvhd[4:8], secs)
	moov := box("moov", box("mvhd", mvhd))
	data := append(box("ftyp", []byte("qt  \x00\x00\x00\x00")), moov...)

	md := extractQuickTime(data)
	if md == nil || md.CreatedAt == nil {
		t.Fatal("expected creation time from mvhd")
	}
	if !md.CreatedAt.Equal(created) {
		t.Errorf("creation time = %v, want %v", md.CreatedAt, created)
	}
}

func TestExtractQuickTime_Location(t *testing.T) {
	loc := "+52.5000+013.4000/"
	payload := make([]byte, 4+len(loc))
	binary.BigEndian.PutUint16(payload[0:2], uint16(len(loc)))
	copy(payload[4:], loc)

	moov := box("moov", box("udta", box("\xa9xyz", payload)))
	got := extractQuickTime(moov)
	if got == nil || got.Place == nil {
		t.Fatal("expected verbatim place from ©xyz")
	}
	if math.Abs(got.Place.Lat-52.5) > 1e-9 || math.Abs(got.Place.Lon-13.4) > 1e-9 {
		t.Errorf("place = (%v, %v), want (52.5, 13.4)", got.Place.Lat, got.Place.Lon)
	}
	if got.Place.Name != "+52.5000+013.4000" {
		t.Errorf("place name = %q, want the raw string", got.Place.Name)
	}
}

func TestParseISO6709(t *testing.T) {
	tests := []struct {
		in       string
		lat, lon float64
		ok       bool
	}{
		{"+52.5000+013.4000/", 52.5, 13.4, true},
		{"-33.8700+151.2100/", -33.87, 151.21, true},
		{"+48.8600+002.3500+035.000/", 48.86, 2.35, true}, // altitude trailer
		{"nonsense", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		p := parseISO6709(tt.in)
		if tt.ok != (p != nil) {
			t.Errorf("parseISO6709(%q) ok = %v, want %v", tt.in, p != nil, tt.ok)
			continue
		}
		if p != nil && (math.Abs(p.Lat-tt.lat) > 1e-9 || math.Abs(p.Lon-tt.lon) > 1e-9) {
			t.Errorf("parseISO6709(%q) = (%v,%v), want (%v,%v)", tt.in, p.Lat, p.Lon, tt.lat, tt.lon)
		}
	}
}
