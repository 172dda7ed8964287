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

// SegmentInfo is the parsed SegmentInfo element.
type SegmentInfo struct {
	MuxingApp  string
	WritingApp string
	Title      string

	timecodeScale int64
	duration      float64
}

func newSegmentInfo(r webm.Reader, start, size int64) (*SegmentInfo, error) {
	si := &SegmentInfo{
		timecodeScale: webm.DefaultTimecodeScale,
	}

	pos := start
	stop := start + size
	for pos < stop {
		if v, ok, err := matchUInt(r, &pos, idTimecodeScale); err != nil {
			return nil, err
		} else if ok {
			if v <= 0 {
				return nil, webm.ErrFormatInvalid
			}
			si.timecodeScale = v
		} else if v, ok, err := matchFloat(r, &pos, idDuration); err != nil {
			return nil, err
		} else if ok {
			if v < 0 {
				return nil, webm.ErrFormatInvalid
			}
			si.duration = v
		} else if s, ok, err := matchString(r, &pos, idMuxingApp); err != nil {
			return nil, err
		} else if ok {
			si.MuxingApp = s
		} else if s, ok, err := matchString(r, &pos, idWritingApp); err != nil {
			return nil, err
		} else if ok {
			si.WritingApp = s
		} else if s, ok, err := matchString(r, &pos, idTitle); err != nil {
			return nil, err
		} else if ok {
			si.Title = s
		} else if err := skipElement(r, &pos); err != nil {
			return nil, err
		}
		if pos > stop {
			return nil, webm.ErrFormatInvalid
		}
	}

	return si, nil
}

// TimecodeScale returns the nanoseconds per timecode tick.
func (si *SegmentInfo) TimecodeScale() int64 {
	return si.timecodeScale
}

// Duration returns the segment duration in nanoseconds, or 0 when the
// file does not carry one.
func (si *SegmentInfo) Duration() int64 {
	return int64(si.duration * float64(si.timecodeScale))
}
