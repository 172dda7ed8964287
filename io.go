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

import "io"

// Writer is the byte sink used by the muxer.
//
// A sink reporting Seekable() == false puts the muxer in live mode: size
// placeholders are left as "unknown" and nothing is back-patched on
// finalize. Seek must reposition the write cursor to an absolute offset
// and return nil on success.
type Writer interface {
	io.Writer

	// Position returns the current write offset.
	Position() int64
	// Seek repositions the write cursor to an absolute offset.
	Seek(pos int64) error
	// Seekable reports whether Seek may be used.
	Seekable() bool
}

// Reader is the byte source used by the demuxer.
//
// Read must fill p entirely from the absolute offset pos, or return an
// error. A source that is still being filled (e.g. a network download)
// returns a *BufferNotFullError when [pos, pos+len(p)) extends beyond the
// available window; the demuxer propagates it so the caller can retry once
// more bytes have arrived.
type Reader interface {
	Read(pos int64, p []byte) error

	// Length returns the total size of the source and the number of bytes
	// available for reading. A source of unknown total size reports the
	// bytes seen so far as both values once it reaches end of stream.
	Length() (total, available int64)
}
