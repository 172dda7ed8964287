// Copyright 2020 SEQSENSE, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package demuxer

import (
	"math"

	webm "github.com/Acidburn0zzz/webm.libwebm"
)

// Element IDs with the length-marker bit already masked off, which is how
// readVInt yields them.
const (
	idEBML               = 0x0A45DFA3
	idEBMLVersion        = 0x0286
	idEBMLReadVersion    = 0x02F7
	idEBMLMaxIDLength    = 0x02F2
	idEBMLMaxSizeLength  = 0x02F3
	idDocType            = 0x0282
	idDocTypeVersion     = 0x0287
	idDocTypeReadVersion = 0x0285

	idSegment = 0x08538067

	idInfo          = 0x0549A966
	idTimecodeScale = 0x0AD7B1
	idDuration      = 0x0489
	idTitle         = 0x3BA9
	idMuxingApp     = 0x0D80
	idWritingApp    = 0x1741

	idTracks       = 0x0654AE6B
	idTrackEntry   = 0x2E
	idTrackNumber  = 0x57
	idTrackUID     = 0x33C5
	idTrackType    = 0x03
	idTrackName    = 0x136E
	idCodecID      = 0x06
	idCodecPrivate = 0x23A2
	idCodecName    = 0x058688

	idVideo       = 0x60
	idPixelWidth  = 0x30
	idPixelHeight = 0x3A
	idFrameRate   = 0x0383E3

	idAudio             = 0x61
	idSamplingFrequency = 0x35
	idChannels          = 0x1F
	idBitDepth          = 0x2264

	idCluster        = 0x0F43B675
	idTimecode       = 0x67
	idSimpleBlock    = 0x23
	idBlockGroup     = 0x20
	idBlock          = 0x21
	idReferenceBlock = 0x7B

	idCues               = 0x0C53BB6B
	idCuePoint           = 0x3B
	idCueTime            = 0x33
	idCueTrackPositions  = 0x37
	idCueTrack           = 0x77
	idCueClusterPosition = 0x71
	idCueBlockNumber     = 0x1378
)

// readVInt decodes a variable-length integer at pos, returning the value
// with the length marker masked off and the encoded width. A short source
// yields a *webm.BufferNotFullError.
func readVInt(r webm.Reader, pos int64) (value int64, width int, err error) {
	_, available := r.Length()
	if pos >= available {
		return 0, 0, webm.NeedMore(pos + 1)
	}
	var b [1]byte
	if err := r.Read(pos, b[:]); err != nil {
		return 0, 0, err
	}
	c := b[0]
	if c == 0 {
		// A leading zero byte means a width over 8, which the WebM
		// profile does not allow.
		return 0, 0, webm.ErrFormatInvalid
	}
	width = 1
	m := byte(0x80)
	for c&m == 0 {
		m >>= 1
		width++
	}
	if pos+int64(width) > available {
		return 0, 0, webm.NeedMore(pos + int64(width))
	}
	value = int64(c &^ m)
	for i := 1; i < width; i++ {
		if err := r.Read(pos+int64(i), b[:]); err != nil {
			return 0, 0, err
		}
		value = value<<8 | int64(b[0])
	}
	return value, width, nil
}

// vintLength probes the width of the variable-length integer at pos
// without consuming it.
func vintLength(r webm.Reader, pos int64) (int, error) {
	_, available := r.Length()
	if pos >= available {
		return 0, webm.NeedMore(pos + 1)
	}
	var b [1]byte
	if err := r.Read(pos, b[:]); err != nil {
		return 0, err
	}
	if b[0] == 0 {
		return 0, webm.ErrFormatInvalid
	}
	width := 1
	m := byte(0x80)
	for b[0]&m == 0 {
		m >>= 1
		width++
	}
	return width, nil
}

// syncReadVInt decodes a variable-length integer that must lie entirely
// before stop. Used while scanning for cluster boundaries, where running
// out of declared bounds is a format error but running out of available
// bytes is not.
func syncReadVInt(r webm.Reader, pos, stop int64) (value int64, width int, err error) {
	if pos >= stop {
		return 0, 0, webm.ErrFormatInvalid
	}
	var b [1]byte
	if err := r.Read(pos, b[:]); err != nil {
		return 0, 0, err
	}
	c := b[0]
	if c == 0 {
		return 0, 0, webm.ErrFormatInvalid
	}
	width = 1
	m := byte(0x80)
	for c&m == 0 {
		m >>= 1
		width++
	}
	if pos+int64(width) > stop {
		return 0, 0, webm.ErrFormatInvalid
	}
	value = int64(c &^ m)
	for i := 1; i < width; i++ {
		if err := r.Read(pos+int64(i), b[:]); err != nil {
			return 0, 0, err
		}
		value = value<<8 | int64(b[0])
	}
	return value, width, nil
}

// readUInt reads a size-byte big-endian unsigned integer.
func readUInt(r webm.Reader, pos, size int64) (int64, error) {
	var result int64
	var b [1]byte
	for i := int64(0); i < size; i++ {
		if err := r.Read(pos+i, b[:]); err != nil {
			return 0, err
		}
		result = result<<8 | int64(b[0])
	}
	return result, nil
}

// readSInt reads a size-byte big-endian signed integer, sign-extended.
func readSInt(r webm.Reader, pos, size int64) (int64, error) {
	var b [1]byte
	if err := r.Read(pos, b[:]); err != nil {
		return 0, err
	}
	result := int64(int8(b[0]))
	for i := int64(1); i < size; i++ {
		if err := r.Read(pos+i, b[:]); err != nil {
			return 0, err
		}
		result = result<<8 | int64(b[0])
	}
	return result, nil
}

// readFloat reads a 4- or 8-byte big-endian IEEE-754 float.
func readFloat(r webm.Reader, pos, size int64) (float64, error) {
	if size != 4 && size != 8 {
		return 0, webm.ErrFormatInvalid
	}
	var bits uint64
	var b [1]byte
	for i := int64(0); i < size; i++ {
		if err := r.Read(pos+i, b[:]); err != nil {
			return 0, err
		}
		bits = bits<<8 | uint64(b[0])
	}
	if size == 4 {
		return float64(math.Float32frombits(uint32(bits))), nil
	}
	return math.Float64frombits(bits), nil
}

// matchHeader reads the element at *pos; if its ID equals id it returns
// the payload position and size and advances *pos past the element.
// Otherwise *pos is untouched and ok is false.
func matchHeader(r webm.Reader, pos *int64, id int64) (payload, size int64, ok bool, err error) {
	v, n, err := readVInt(r, *pos)
	if err != nil {
		return 0, 0, false, err
	}
	if v != id {
		return 0, 0, false, nil
	}
	p := *pos + int64(n)
	size, n2, err := readVInt(r, p)
	if err != nil {
		return 0, 0, false, err
	}
	payload = p + int64(n2)
	*pos = payload + size
	return payload, size, true, nil
}

func matchUInt(r webm.Reader, pos *int64, id int64) (int64, bool, error) {
	payload, size, ok, err := matchHeader(r, pos, id)
	if !ok || err != nil {
		return 0, false, err
	}
	if size < 1 || size > 8 {
		return 0, false, webm.ErrFormatInvalid
	}
	v, err := readUInt(r, payload, size)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func matchSInt(r webm.Reader, pos *int64, id int64) (int16, bool, error) {
	payload, size, ok, err := matchHeader(r, pos, id)
	if !ok || err != nil {
		return 0, false, err
	}
	if size != 1 && size != 2 {
		return 0, false, webm.ErrFormatInvalid
	}
	v, err := readSInt(r, payload, size)
	if err != nil {
		return 0, false, err
	}
	return int16(v), true, nil
}

func matchFloat(r webm.Reader, pos *int64, id int64) (float64, bool, error) {
	payload, size, ok, err := matchHeader(r, pos, id)
	if !ok || err != nil {
		return 0, false, err
	}
	v, err := readFloat(r, payload, size)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func matchString(r webm.Reader, pos *int64, id int64) (string, bool, error) {
	b, ok, err := matchBytes(r, pos, id)
	if !ok || err != nil {
		return "", false, err
	}
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}
	return string(b), true, nil
}

func matchBytes(r webm.Reader, pos *int64, id int64) ([]byte, bool, error) {
	payload, size, ok, err := matchHeader(r, pos, id)
	if !ok || err != nil {
		return nil, false, err
	}
	buf := make([]byte, size)
	if err := r.Read(payload, buf); err != nil {
		return nil, false, err
	}
	return buf, true, nil
}

// skipElement reads the ID and size at *pos and advances past the
// payload.
func skipElement(r webm.Reader, pos *int64) error {
	_, n, err := readVInt(r, *pos)
	if err != nil {
		return err
	}
	p := *pos + int64(n)
	size, n2, err := readVInt(r, p)
	if err != nil {
		return err
	}
	*pos = p + int64(n2) + size
	return nil
}
