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

package muxer

import (
	"fmt"

	webm "github.com/Acidburn0zzz/webm.libwebm"
)

const defaultApp = "webm.libwebm"

// SegmentInfo carries the segment-wide metadata. Duration is in timecode
// ticks and written as a 4-byte float; a value <= 0 suppresses the field.
// The write remembers where the duration landed so Finalize can rewrite
// it in place.
type SegmentInfo struct {
	TimecodeScale uint64
	Duration      float64
	MuxingApp     string
	WritingApp    string

	durationPos int64
}

func newSegmentInfo() *SegmentInfo {
	return &SegmentInfo{
		TimecodeScale: webm.DefaultTimecodeScale,
		Duration:      -1.0,
		MuxingApp:     defaultApp,
		WritingApp:    defaultApp,
		durationPos:   -1,
	}
}

func (si *SegmentInfo) write(w webm.Writer) error {
	if si.MuxingApp == "" || si.WritingApp == "" {
		return fmt.Errorf("segment info app names not set: %w", webm.ErrInvalidArgument)
	}
	size := ebmlUIntElementSize(webm.IDTimecodeScale, si.TimecodeScale)
	if si.Duration > 0 {
		size += ebmlFloatElementSize(webm.IDDuration)
	}
	size += ebmlStringElementSize(webm.IDMuxingApp, si.MuxingApp)
	size += ebmlStringElementSize(webm.IDWritingApp, si.WritingApp)

	if err := writeMasterElement(w, webm.IDInfo, size); err != nil {
		return err
	}
	start := w.Position()

	if err := writeElementUInt(w, webm.IDTimecodeScale, si.TimecodeScale); err != nil {
		return err
	}
	if si.Duration > 0 {
		si.durationPos = w.Position()
		if err := writeElementFloat(w, webm.IDDuration, float32(si.Duration)); err != nil {
			return err
		}
	}
	if err := writeElementString(w, webm.IDMuxingApp, si.MuxingApp); err != nil {
		return err
	}
	if err := writeElementString(w, webm.IDWritingApp, si.WritingApp); err != nil {
		return err
	}

	if got := uint64(w.Position() - start); got != size {
		return fmt.Errorf("segment info wrote %d payload bytes, want %d: %w", got, size, webm.ErrInvalidArgument)
	}
	return nil
}

// finalize rewrites the duration field in place. It is a no-op when the
// field was never allocated or the sink cannot seek. A zero duration is
// rewritten too, so the 1.0 allocation value never survives.
func (si *SegmentInfo) finalize(w webm.Writer) error {
	if si.durationPos < 0 || !w.Seekable() {
		return nil
	}
	pos := w.Position()
	if err := w.Seek(si.durationPos); err != nil {
		return err
	}
	if err := writeElementFloat(w, webm.IDDuration, float32(si.Duration)); err != nil {
		return err
	}
	return w.Seek(pos)
}
