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
	webm "github.com/Acidburn0zzz/webm.libwebm"
)

// EBMLHeader is the parsed EBML header element at the top of the file.
type EBMLHeader struct {
	Version            int64
	ReadVersion        int64
	MaxIDLength        int64
	MaxSizeLength      int64
	DocType            string
	DocTypeVersion     int64
	DocTypeReadVersion int64
}

// Parse locates the EBML header within the first 1024 bytes and decodes
// it, returning the position just past the header. A short source yields
// a *webm.BufferNotFullError.
func (h *EBMLHeader) Parse(r webm.Reader) (int64, error) {
	total, available := r.Length()

	pos := int64(0)
	end := int64(1024)
	if available < end {
		end = available
	}

	for {
		var b byte
		for pos < end {
			var buf [1]byte
			if err := r.Read(pos, buf[:]); err != nil {
				return 0, err
			}
			b = buf[0]
			if b == 0x1A {
				break
			}
			pos++
		}

		if b != 0x1A {
			if pos >= 1024 || available >= total || total-available < 5 {
				return 0, webm.ErrFormatInvalid
			}
			return 0, webm.NeedMore(available + 5)
		}

		if total-pos < 5 {
			return 0, webm.ErrFormatInvalid
		}
		if available-pos < 5 {
			return 0, webm.NeedMore(pos + 5)
		}

		id, n, err := readVInt(r, pos)
		if err != nil {
			return 0, err
		}
		if id == idEBML {
			pos += int64(n)
			break
		}

		// The 0x1A was a payload byte of something else.
		pos++
	}

	width, err := vintLength(r, pos)
	if err != nil {
		return 0, err
	}
	if total-pos < int64(width) {
		return 0, webm.ErrFormatInvalid
	}
	if available-pos < int64(width) {
		return 0, webm.NeedMore(pos + int64(width))
	}

	size, _, err := readVInt(r, pos)
	if err != nil {
		return 0, err
	}
	pos += int64(width)

	if total-pos < size {
		return 0, webm.ErrFormatInvalid
	}
	if available-pos < size {
		return 0, webm.NeedMore(pos + size)
	}

	end = pos + size

	h.Version = 1
	h.ReadVersion = 1
	h.MaxIDLength = 4
	h.MaxSizeLength = 8
	h.DocTypeVersion = 1
	h.DocTypeReadVersion = 1

	for pos < end {
		if v, ok, err := matchUInt(r, &pos, idEBMLVersion); err != nil {
			return 0, err
		} else if ok {
			h.Version = v
		} else if v, ok, err := matchUInt(r, &pos, idEBMLReadVersion); err != nil {
			return 0, err
		} else if ok {
			h.ReadVersion = v
		} else if v, ok, err := matchUInt(r, &pos, idEBMLMaxIDLength); err != nil {
			return 0, err
		} else if ok {
			h.MaxIDLength = v
		} else if v, ok, err := matchUInt(r, &pos, idEBMLMaxSizeLength); err != nil {
			return 0, err
		} else if ok {
			h.MaxSizeLength = v
		} else if s, ok, err := matchString(r, &pos, idDocType); err != nil {
			return 0, err
		} else if ok {
			h.DocType = s
		} else if v, ok, err := matchUInt(r, &pos, idDocTypeVersion); err != nil {
			return 0, err
		} else if ok {
			h.DocTypeVersion = v
		} else if v, ok, err := matchUInt(r, &pos, idDocTypeReadVersion); err != nil {
			return 0, err
		} else if ok {
			h.DocTypeReadVersion = v
		} else if err := skipElement(r, &pos); err != nil {
			return 0, err
		}
		if pos > end {
			return 0, webm.ErrFormatInvalid
		}
	}

	return end, nil
}
