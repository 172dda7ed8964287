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

// Package memio provides in-memory byte sink and source implementations,
// mainly for tests: a seekable Writer for file-mode muxing, and a Reader
// whose availability window can be moved to exercise the demuxer's
// incremental parsing.
package memio

import (
	"fmt"

	webm "github.com/Acidburn0zzz/webm.libwebm"
)

// Writer is a seekable in-memory implementation of webm.Writer.
type Writer struct {
	buf []byte
	pos int64
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Write(p []byte) (int, error) {
	end := w.pos + int64(len(p))
	if end > int64(len(w.buf)) {
		grown := make([]byte, end)
		copy(grown, w.buf)
		w.buf = grown
	}
	copy(w.buf[w.pos:end], p)
	w.pos = end
	return len(p), nil
}

func (w *Writer) Position() int64 {
	return w.pos
}

func (w *Writer) Seek(pos int64) error {
	if pos < 0 || pos > int64(len(w.buf)) {
		return fmt.Errorf("seek to %d outside [0, %d]: %w", pos, len(w.buf), webm.ErrInvalidArgument)
	}
	w.pos = pos
	return nil
}

func (w *Writer) Seekable() bool {
	return true
}

// Bytes returns the written file image.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reader is an in-memory implementation of webm.Reader with an adjustable
// availability window, mimicking a source that is still downloading.
type Reader struct {
	data      []byte
	available int64
}

// NewReader returns a Reader with the whole of data available.
func NewReader(data []byte) *Reader {
	return &Reader{data: data, available: int64(len(data))}
}

// NewPartialReader returns a Reader exposing only the first available
// bytes of data.
func NewPartialReader(data []byte, available int64) *Reader {
	if available > int64(len(data)) {
		available = int64(len(data))
	}
	return &Reader{data: data, available: available}
}

// SetAvailable moves the availability window.
func (r *Reader) SetAvailable(n int64) {
	if n > int64(len(r.data)) {
		n = int64(len(r.data))
	}
	r.available = n
}

func (r *Reader) Read(pos int64, p []byte) error {
	if pos < 0 {
		return fmt.Errorf("read at %d: %w", pos, webm.ErrInvalidArgument)
	}
	end := pos + int64(len(p))
	if end > r.available {
		return webm.NeedMore(end)
	}
	copy(p, r.data[pos:end])
	return nil
}

func (r *Reader) Length() (total, available int64) {
	return int64(len(r.data)), r.available
}
