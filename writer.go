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

package webm

import (
	"fmt"
	"io"
	"sync/atomic"
)

// StreamWriter adapts a plain io.Writer into a non-seekable Writer,
// putting the muxer in live mode. It tracks the write offset, stores the
// first error returned by the underlying writer, and swallows writes after
// that so a streaming pipeline is torn down once instead of on every
// frame. Check Err after finalizing.
type StreamWriter struct {
	w   io.Writer
	pos int64
	err atomic.Value // error
}

// NewStreamWriter returns a StreamWriter emitting to w.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

func (w *StreamWriter) Write(b []byte) (int, error) {
	if err := w.err.Load(); err != nil {
		return len(b), nil
	}
	if _, err := w.w.Write(b); err != nil {
		w.err.Store(err)
		return len(b), nil
	}
	w.pos += int64(len(b))
	return len(b), nil
}

func (w *StreamWriter) Position() int64 {
	return w.pos
}

func (w *StreamWriter) Seek(pos int64) error {
	return fmt.Errorf("stream writer cannot seek: %w", ErrInvalidArgument)
}

func (w *StreamWriter) Seekable() bool {
	return false
}

// Err returns the first error reported by the underlying writer.
func (w *StreamWriter) Err() error {
	err, ok := w.err.Load().(error)
	if !ok {
		return nil
	}
	return err
}
