package imgfit

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Orientation is an EXIF flag that specifies the transformation
// that should be applied to image to display it correctly.
//
// Unknown is returned when the flag is absent or cannot be parsed.
// It behaves like Normal everywhere an orientation is applied.
type Orientation int

// EXIF orientation values.
const (
	Unknown    Orientation = 0
	Normal     Orientation = 1
	FlipH      Orientation = 2
	Rotate180  Orientation = 3
	FlipV      Orientation = 4
	Transpose  Orientation = 5
	Rotate270  Orientation = 6
	Transverse Orientation = 7
	Rotate90   Orientation = 8
)

var orientationNames = [...]string{
	"unknown",
	"normal",
	"flip-horizontal",
	"rotate-180",
	"flip-vertical",
	"transpose",
	"rotate-270",
	"transverse",
	"rotate-90",
}

// Known reports whether o is one of the eight EXIF orientations.
func (o Orientation) Known() bool { return o >= Normal && o <= Rotate90 }

// Code returns the EXIF value of o. Unknown maps to 1.
func (o Orientation) Code() int {
	if !o.Known() {
		return int(Normal)
	}
	return int(o)
}

func (o Orientation) String() string {
	if o.Known() || o == Unknown {
		return orientationNames[o]
	}
	return fmt.Sprintf("Orientation(%d)", int(o))
}

const (
	markerPrefix = 0xff
	markerSOI    = 0xd8
	markerEOI    = 0xd9
	markerSOS    = 0xda
	markerAPP1   = 0xe1
	markerTEM    = 0x01

	byteOrderLE    = "II"
	byteOrderBE    = "MM"
	orientationTag = 0x0112
	ifdEntrySize   = 12
)

var exifSignature = []byte("Exif\x00\x00")

// markerScanner walks the marker segments of a JPEG stream up to the
// start of scan.
type markerScanner struct {
	data []byte
	pos  int
}

func newMarkerScanner(data []byte) (*markerScanner, bool) {
	if len(data) < 2 || data[0] != markerPrefix || data[1] != markerSOI {
		return nil, false
	}
	return &markerScanner{data: data, pos: 2}, true
}

// next returns the next marker and its payload without the length field.
// It returns false at SOS, EOI, end of data or on a malformed segment.
func (s *markerScanner) next() (marker byte, payload []byte, ok bool) {
	for {
		if s.pos >= len(s.data) || s.data[s.pos] != markerPrefix {
			return 0, nil, false
		}
		// Any number of 0xff fill bytes may precede a marker.
		for s.pos < len(s.data) && s.data[s.pos] == markerPrefix {
			s.pos++
		}
		if s.pos >= len(s.data) {
			return 0, nil, false
		}
		marker = s.data[s.pos]
		s.pos++

		switch {
		case marker == markerSOS || marker == markerEOI || marker == 0:
			return 0, nil, false
		case marker == markerTEM || (marker >= 0xd0 && marker <= 0xd7):
			// Standalone markers carry no length.
			continue
		}

		if s.pos+2 > len(s.data) {
			return 0, nil, false
		}
		size := int(binary.BigEndian.Uint16(s.data[s.pos:]))
		if size < 2 || s.pos+size > len(s.data) {
			return 0, nil, false
		}
		payload = s.data[s.pos+2 : s.pos+size]
		s.pos += size
		return marker, payload, true
	}
}

// LocateOrientation reads the orientation EXIF flag from JPEG data.
// If the data is not a JPEG, the EXIF block or the orientation tag is
// missing, or any other anomaly is found while walking the segments,
// it returns Unknown.
func LocateOrientation(data []byte) Orientation {
	s, ok := newMarkerScanner(data)
	if !ok {
		return Unknown
	}
	for {
		marker, payload, ok := s.next()
		if !ok {
			return Unknown
		}
		if marker != markerAPP1 || !bytes.HasPrefix(payload, exifSignature) {
			continue
		}
		return exifOrientation(payload[len(exifSignature):])
	}
}

// exifOrientation finds tag 0x0112 in IFD0 of a TIFF structure.
func exifOrientation(tiff []byte) Orientation {
	if len(tiff) < 8 {
		return Unknown
	}

	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case byteOrderLE:
		order = binary.LittleEndian
	case byteOrderBE:
		order = binary.BigEndian
	default:
		return Unknown
	}

	offset := int64(order.Uint32(tiff[4:8]))
	if offset < 8 || offset+2 > int64(len(tiff)) {
		return Unknown
	}
	pos := int(offset)
	count := int(order.Uint16(tiff[pos:]))
	pos += 2

	for range count {
		if pos+ifdEntrySize > len(tiff) {
			return Unknown
		}
		entry := tiff[pos : pos+ifdEntrySize]
		pos += ifdEntrySize
		if order.Uint16(entry) != orientationTag {
			continue
		}
		// Skip type and count.
		if o := Orientation(order.Uint16(entry[8:])); o.Known() {
			return o
		}
		return Unknown
	}
	return Unknown
}
