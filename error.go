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
	"errors"
	"fmt"
)

var (
	// ErrBufferNotFull is reported by demuxer operations when the source
	// has fewer bytes than the parse needs. It is never fatal; pump more
	// bytes into the source and retry.
	ErrBufferNotFull = errors.New("buffer not full")

	// ErrFormatInvalid is reported on a structural violation of the EBML
	// grammar or the WebM schema.
	ErrFormatInvalid = errors.New("file format invalid")

	// ErrInvalidArgument is reported when a caller violates an operation's
	// preconditions.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrFinalized is reported when a segment is mutated after Finalize.
	ErrFinalized = errors.New("segment already finalized")
)

// BufferNotFullError tells the caller the minimum number of available
// bytes at which retrying the failed operation can make progress.
type BufferNotFullError struct {
	Needed int64
}

func (e *BufferNotFullError) Error() string {
	return fmt.Sprintf("buffer not full: need %d bytes available", e.Needed)
}

func (e *BufferNotFullError) Is(err error) bool {
	return err == ErrBufferNotFull
}

// NeedMore constructs a BufferNotFullError asking for at least n available
// bytes.
func NeedMore(n int64) error {
	return &BufferNotFullError{Needed: n}
}
