// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package filetype

import (
	"bytes"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// exifTimeLayout is the EXIF DateTimeOriginal format; QuickTime creation
// dates render the same way.
const exifTimeLayout = "2006:01:02 15:04:05"

// Coordinates is a decimal-degree GPS position that still needs reverse
// geocoding to become a place.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Place is a location carried verbatim by the container (QuickTime ©xyz).
// It bypasses reverse geocoding.
type Place struct {
	Name string
	Lat  float64
	Lon  float64
}

// Metadata is what embedded tags yield. Any or all fields may be nil; a
// corrupt or unsupported container yields the zero Metadata, never an error.
type Metadata struct {
	CreatedAt *time.Time
	GPS       *Coordinates
	Place     *Place
}

// ExtractMetadata parses embedded tags from file bytes. EXIF is tried
// first; QuickTime-style containers are walked for the mvhd creation time
// and the udta ©xyz location. All parse failures degrade to empty fields.
func ExtractMetadata(data []byte) Metadata {
	var md Metadata

	if x, err := exif.Decode(bytes.NewReader(data)); err == nil {
		md.CreatedAt = exifCreatedAt(x)
		md.GPS = exifGPS(x)
		if md.CreatedAt != nil || md.GPS != nil {
			return md
		}
	}

	if qt := extractQuickTime(data); qt != nil {
		md.CreatedAt = qt.CreatedAt
		md.Place = qt.Place
	}
	return md
}

// exifCreatedAt reads DateTimeOriginal, tolerating a missing or malformed
// tag.
func exifCreatedAt(x *exif.Exif) *time.Time {
	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return nil
	}
	s, err := tag.StringVal()
	if err != nil {
		return nil
	}
	t, err := time.Parse(exifTimeLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// exifGPS converts the degree/minute/second rational encoding to decimal
// degrees. Both latitude and longitude tags must be present.
func exifGPS(x *exif.Exif) *Coordinates {
	latTag, err := x.Get(exif.GPSLatitude)
	if err != nil {
		return nil
	}
	lonTag, err := x.Get(exif.GPSLongitude)
	if err != nil {
		return nil
	}
	lat, ok := dmsToDegrees(latTag)
	if !ok {
		return nil
	}
	lon, ok := dmsToDegrees(lonTag)
	if !ok {
		return nil
	}
	return &Coordinates{Lat: lat, Lon: lon}
}

// dmsToDegrees reads the three rationals of a GPS tag and converts them to
// decimal degrees.
func dmsToDegrees(tag *tiff.Tag) (float64, bool) {
	if tag == nil || tag.Count < 3 {
		return 0, false
	}
	var rats [3][2]int64
	for i := 0; i < 3; i++ {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return 0, false
		}
		rats[i] = [2]int64{num, den}
	}
	return dmsValue(rats), true
}

// dmsValue computes deg + min/60 + sec/3600. A zero denominator makes that
// component contribute zero instead of dividing.
func dmsValue(rats [3][2]int64) float64 {
	var total float64
	divisors := [3]float64{1, 60, 3600}
	for i, r := range rats {
		if r[1] == 0 {
			continue
		}
		total += float64(r[0]) / float64(r[1]) / divisors[i]
	}
	return total
}
