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
	"errors"
	"testing"

	webm "github.com/Acidburn0zzz/webm.libwebm"
	"github.com/Acidburn0zzz/webm.libwebm/memio"
)

func TestReadVInt(t *testing.T) {
	testCases := map[string]struct {
		data  []byte
		value int64
		width int
	}{
		"Width1Zero":   {[]byte{0x80}, 0, 1},
		"Width1Max":    {[]byte{0xFE}, 126, 1},
		"Width2Min":    {[]byte{0x40, 0x7F}, 127, 2},
		"Width2":       {[]byte{0x40, 0xC8}, 200, 2},
		"Width3":       {[]byte{0x2A, 0xD7, 0xB1}, 0x0AD7B1, 3},
		"Width4ID":     {[]byte{0x1A, 0x45, 0xDF, 0xA3}, 0x0A45DFA3, 4},
		"Width8":       {[]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02}, 2, 8},
		"Width8AllOne": {[]byte{0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, 1<<56 - 1, 8},
	}
	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			r := memio.NewReader(tc.data)
			v, n, err := readVInt(r, 0)
			if err != nil {
				t.Fatalf("Failed to read vint: %v", err)
			}
			if v != tc.value || n != tc.width {
				t.Errorf("Expected (%d, %d), got (%d, %d)", tc.value, tc.width, v, n)
			}
		})
	}

	t.Run("ZeroByte", func(t *testing.T) {
		r := memio.NewReader([]byte{0x00, 0x01})
		if _, _, err := readVInt(r, 0); !errors.Is(err, webm.ErrFormatInvalid) {
			t.Errorf("Expected ErrFormatInvalid, got %v", err)
		}
	})
	t.Run("NeedMoreFirstByte", func(t *testing.T) {
		r := memio.NewPartialReader([]byte{0x40, 0x7F}, 0)
		_, _, err := readVInt(r, 0)
		var bnf *webm.BufferNotFullError
		if !errors.As(err, &bnf) {
			t.Fatalf("Expected BufferNotFullError, got %v", err)
		}
		if bnf.Needed != 1 {
			t.Errorf("Expected needed=1, got %d", bnf.Needed)
		}
	})
	t.Run("NeedMoreTail", func(t *testing.T) {
		r := memio.NewPartialReader([]byte{0x40, 0x7F}, 1)
		_, _, err := readVInt(r, 0)
		var bnf *webm.BufferNotFullError
		if !errors.As(err, &bnf) {
			t.Fatalf("Expected BufferNotFullError, got %v", err)
		}
		if bnf.Needed != 2 {
			t.Errorf("Expected needed=2, got %d", bnf.Needed)
		}
	})
}

func TestVIntLength(t *testing.T) {
	r := memio.NewReader([]byte{0x40, 0x7F})
	n, err := vintLength(r, 0)
	if err != nil {
		t.Fatalf("Failed to probe length: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected width 2, got %d", n)
	}

	t.Run("NeedMore", func(t *testing.T) {
		r := memio.NewPartialReader([]byte{0x40}, 0)
		if _, err := vintLength(r, 0); !errors.Is(err, webm.ErrBufferNotFull) {
			t.Errorf("Expected ErrBufferNotFull, got %v", err)
		}
	})
	t.Run("ZeroByte", func(t *testing.T) {
		r := memio.NewReader([]byte{0x00})
		if _, err := vintLength(r, 0); !errors.Is(err, webm.ErrFormatInvalid) {
			t.Errorf("Expected ErrFormatInvalid, got %v", err)
		}
	})
}

func TestSyncReadVInt(t *testing.T) {
	t.Run("InBounds", func(t *testing.T) {
		r := memio.NewReader([]byte{0x40, 0xC8, 0xFF})
		v, n, err := syncReadVInt(r, 0, 3)
		if err != nil {
			t.Fatalf("Failed to read: %v", err)
		}
		if v != 200 || n != 2 {
			t.Errorf("Expected (200, 2), got (%d, %d)", v, n)
		}
	})
	t.Run("PastStop", func(t *testing.T) {
		r := memio.NewReader([]byte{0x40, 0xC8})
		if _, _, err := syncReadVInt(r, 0, 1); !errors.Is(err, webm.ErrFormatInvalid) {
			t.Errorf("Expected ErrFormatInvalid, got %v", err)
		}
	})
	t.Run("NeedMore", func(t *testing.T) {
		r := memio.NewPartialReader([]byte{0x40, 0xC8}, 1)
		if _, _, err := syncReadVInt(r, 0, 2); !errors.Is(err, webm.ErrBufferNotFull) {
			t.Errorf("Expected ErrBufferNotFull, got %v", err)
		}
	})
}

func TestReadSInt(t *testing.T) {
	testCases := map[string]struct {
		data  []byte
		size  int64
		value int64
	}{
		"PositiveByte": {[]byte{0x21}, 1, 0x21},
		"NegativeByte": {[]byte{0xFF}, 1, -1},
		"Positive2":    {[]byte{0x00, 0x21}, 2, 0x21},
		"Negative2":    {[]byte{0xFF, 0xD8}, 2, -40},
	}
	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			r := memio.NewReader(tc.data)
			v, err := readSInt(r, 0, tc.size)
			if err != nil {
				t.Fatalf("Failed to read: %v", err)
			}
			if v != tc.value {
				t.Errorf("Expected %d, got %d", tc.value, v)
			}
		})
	}
}

func TestReadFloat(t *testing.T) {
	t.Run("Float4", func(t *testing.T) {
		r := memio.NewReader([]byte{0x3F, 0x80, 0x00, 0x00})
		v, err := readFloat(r, 0, 4)
		if err != nil {
			t.Fatalf("Failed to read: %v", err)
		}
		if v != 1.0 {
			t.Errorf("Expected 1.0, got %v", v)
		}
	})
	t.Run("Float8", func(t *testing.T) {
		r := memio.NewReader([]byte{0x40, 0x45, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
		v, err := readFloat(r, 0, 8)
		if err != nil {
			t.Fatalf("Failed to read: %v", err)
		}
		if v != 42.0 {
			t.Errorf("Expected 42.0, got %v", v)
		}
	})
	t.Run("BadSize", func(t *testing.T) {
		r := memio.NewReader([]byte{0x00, 0x00})
		if _, err := readFloat(r, 0, 2); !errors.Is(err, webm.ErrFormatInvalid) {
			t.Errorf("Expected ErrFormatInvalid, got %v", err)
		}
	})
}

func TestMatch(t *testing.T) {
	// Timecode element (0xE7) holding 0x21, followed by junk.
	data := []byte{0xE7, 0x81, 0x21, 0xAA}

	t.Run("Hit", func(t *testing.T) {
		r := memio.NewReader(data)
		pos := int64(0)
		v, ok, err := matchUInt(r, &pos, idTimecode)
		if err != nil || !ok {
			t.Fatalf("Expected match, got ok=%v err=%v", ok, err)
		}
		if v != 0x21 {
			t.Errorf("Expected 0x21, got %#x", v)
		}
		if pos != 3 {
			t.Errorf("Expected pos=3 after match, got %d", pos)
		}
	})
	t.Run("Miss", func(t *testing.T) {
		r := memio.NewReader(data)
		pos := int64(0)
		_, ok, err := matchUInt(r, &pos, idDuration)
		if err != nil || ok {
			t.Fatalf("Expected miss, got ok=%v err=%v", ok, err)
		}
		if pos != 0 {
			t.Errorf("Miss must not advance pos, got %d", pos)
		}
	})
	t.Run("String", func(t *testing.T) {
		// DocType element 0x4282 "webm" with a trailing NUL.
		r := memio.NewReader([]byte{0x42, 0x82, 0x85, 'w', 'e', 'b', 'm', 0x00})
		pos := int64(0)
		s, ok, err := matchString(r, &pos, idDocType)
		if err != nil || !ok {
			t.Fatalf("Expected match, got ok=%v err=%v", ok, err)
		}
		if s != "webm" {
			t.Errorf("Expected trimmed string, got %q", s)
		}
	})
	t.Run("SInt", func(t *testing.T) {
		// ReferenceBlock element (0xFB) holding -40.
		r := memio.NewReader([]byte{0xFB, 0x81, 0xD8})
		pos := int64(0)
		v, ok, err := matchSInt(r, &pos, idReferenceBlock)
		if err != nil || !ok {
			t.Fatalf("Expected match, got ok=%v err=%v", ok, err)
		}
		if v != -40 {
			t.Errorf("Expected -40, got %d", v)
		}
	})
}
