package extractor

import (
	"bytes"
	"encoding/binary"
)

var (
	jpegSOI = []byte{0xFF, 0xD8, 0xFF}
	jpegEOI = []byte{0xFF, 0xD9}
	mvhdTag = []byte("mvhd")
)

// scanJPEGFrames pulls up to max embedded JPEG images out of a video stream.
// MJPEG and many container formats carry key frames as plain JPEG segments
// delimited by SOI/EOI markers.
func scanJPEGFrames(data []byte, max int) [][]byte {
	var frames [][]byte
	offset := 0
	for len(frames) < max {
		start := bytes.Index(data[offset:], jpegSOI)
		if start < 0 {
			break
		}
		start += offset
		end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
		if end < 0 {
			break
		}
		end += start + len(jpegSOI) + len(jpegEOI)
		frames = append(frames, data[start:end])
		offset = end
	}
	return frames
}

// mp4Duration reads the duration in seconds from an MP4 movie header box.
// Returns 0 when no mvhd box is present or the data is truncated.
func mp4Duration(data []byte) float64 {
	i := bytes.Index(data, mvhdTag)
	if i < 0 {
		return 0
	}
	box := data[i+len(mvhdTag):]
	if len(box) < 1 {
		return 0
	}
	version := box[0]
	// layout after version+flags: creation, modification, timescale, duration
	switch version {
	case 0:
		if len(box) < 20 {
			return 0
		}
		timescale := binary.BigEndian.Uint32(box[12:16])
		duration := binary.BigEndian.Uint32(box[16:20])
		if timescale == 0 {
			return 0
		}
		return float64(duration) / float64(timescale)
	case 1:
		if len(box) < 32 {
			return 0
		}
		timescale := binary.BigEndian.Uint32(box[20:24])
		duration := binary.BigEndian.Uint64(box[24:32])
		if timescale == 0 {
			return 0
		}
		return float64(duration) / float64(timescale)
	default:
		return 0
	}
}
