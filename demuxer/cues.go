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

// TrackPosition is one CueTrackPositions record: the indexed track, the
// cluster offset from the segment payload start, and the 1-based block
// number within that cluster.
type TrackPosition struct {
	Track int64
	Pos   int64
	Block int64
}

// CuePoint is one parsed cue: a timecode and its track positions.
type CuePoint struct {
	timecode  int64
	positions []TrackPosition
}

// Timecode returns the cue timecode in ticks.
func (cp *CuePoint) Timecode() int64 {
	return cp.timecode
}

// Time returns the cue time in nanoseconds.
func (cp *CuePoint) Time(s *Segment) int64 {
	return cp.timecode * s.Info().TimecodeScale()
}

// Find returns the cue's track position for the given track, or nil.
func (cp *CuePoint) Find(t *Track) *TrackPosition {
	for i := range cp.positions {
		if cp.positions[i].Track == t.Number {
			return &cp.positions[i]
		}
	}
	return nil
}

func (cp *CuePoint) parse(r webm.Reader, start, size int64) error {
	stop := start + size
	cp.timecode = -1

	count := 0
	pos := start
	for pos < stop {
		id, n, err := readVInt(r, pos)
		if err != nil {
			return err
		}
		pos += int64(n)
		childSize, n, err := readVInt(r, pos)
		if err != nil {
			return err
		}
		pos += int64(n)

		switch id {
		case idCueTime:
			v, err := readUInt(r, pos, childSize)
			if err != nil {
				return err
			}
			cp.timecode = v
		case idCueTrackPositions:
			count++
		}

		pos += childSize
		if pos > stop {
			return webm.ErrFormatInvalid
		}
	}

	if cp.timecode < 0 || count == 0 {
		return webm.ErrFormatInvalid
	}

	cp.positions = make([]TrackPosition, 0, count)
	pos = start
	for pos < stop {
		id, n, err := readVInt(r, pos)
		if err != nil {
			return err
		}
		pos += int64(n)
		childSize, n, err := readVInt(r, pos)
		if err != nil {
			return err
		}
		pos += int64(n)

		if id == idCueTrackPositions {
			var tp TrackPosition
			if err := tp.parse(r, pos, childSize); err != nil {
				return err
			}
			cp.positions = append(cp.positions, tp)
		}

		pos += childSize
	}
	return nil
}

func (tp *TrackPosition) parse(r webm.Reader, start, size int64) error {
	tp.Track = -1
	tp.Pos = -1
	tp.Block = 1

	pos := start
	stop := start + size
	for pos < stop {
		id, n, err := readVInt(r, pos)
		if err != nil {
			return err
		}
		pos += int64(n)
		childSize, n, err := readVInt(r, pos)
		if err != nil {
			return err
		}
		pos += int64(n)

		switch id {
		case idCueTrack:
			v, err := readUInt(r, pos, childSize)
			if err != nil {
				return err
			}
			tp.Track = v
		case idCueClusterPosition:
			v, err := readUInt(r, pos, childSize)
			if err != nil {
				return err
			}
			tp.Pos = v
		case idCueBlockNumber:
			v, err := readUInt(r, pos, childSize)
			if err != nil {
				return err
			}
			tp.Block = v
		}

		pos += childSize
		if pos > stop {
			return webm.ErrFormatInvalid
		}
	}

	if tp.Track <= 0 || tp.Pos < 0 || tp.Block <= 0 {
		return webm.ErrFormatInvalid
	}
	return nil
}

// Cues is the parsed cue index.
type Cues struct {
	segment *Segment
	points  []*CuePoint
}

func newCues(s *Segment, start, size int64) (*Cues, error) {
	c := &Cues{segment: s}
	r := s.r
	stop := start + size

	count := 0
	pos := start
	for pos < stop {
		id, n, err := readVInt(r, pos)
		if err != nil {
			return nil, err
		}
		pos += int64(n)
		childSize, n, err := readVInt(r, pos)
		if err != nil {
			return nil, err
		}
		pos += int64(n)
		if id == idCuePoint {
			count++
		}
		pos += childSize
		if pos > stop {
			return nil, webm.ErrFormatInvalid
		}
	}

	c.points = make([]*CuePoint, 0, count)
	pos = start
	for pos < stop {
		id, n, err := readVInt(r, pos)
		if err != nil {
			return nil, err
		}
		pos += int64(n)
		childSize, n, err := readVInt(r, pos)
		if err != nil {
			return nil, err
		}
		pos += int64(n)

		if id == idCuePoint {
			cp := &CuePoint{}
			if err := cp.parse(r, pos, childSize); err != nil {
				return nil, err
			}
			c.points = append(c.points, cp)
		}

		pos += childSize
	}
	return c, nil
}

// Count returns the number of cue points.
func (c *Cues) Count() int {
	return len(c.points)
}

// ByIndex returns the cue point at idx, or nil.
func (c *Cues) ByIndex(idx int) *CuePoint {
	if idx < 0 || idx >= len(c.points) {
		return nil
	}
	return c.points[idx]
}

// Find returns the greatest cue point with time <= timeNS and its track
// position for t. If timeNS precedes the first cue, the first cue is
// returned. ok is false when the index is empty or the cue has no
// position for the track.
func (c *Cues) Find(timeNS int64, t *Track) (*CuePoint, *TrackPosition, bool) {
	if len(c.points) == 0 {
		return nil, nil, false
	}

	if timeNS <= c.points[0].Time(c.segment) {
		cp := c.points[0]
		tp := cp.Find(t)
		return cp, tp, tp != nil
	}

	i, j := 0, len(c.points)
	for i < j {
		// invariant:
		// [0, i) <= timeNS
		// [i, j) ?
		// [j, len) > timeNS
		k := i + (j-i)/2
		if c.points[k].Time(c.segment) <= timeNS {
			i = k + 1
		} else {
			j = k
		}
	}

	cp := c.points[i-1]
	tp := cp.Find(t)
	return cp, tp, tp != nil
}

// FindNext returns the first cue point with time > timeNS and its track
// position for t.
func (c *Cues) FindNext(timeNS int64, t *Track) (*CuePoint, *TrackPosition, bool) {
	i, j := 0, len(c.points)
	for i < j {
		k := i + (j-i)/2
		if c.points[k].Time(c.segment) <= timeNS {
			i = k + 1
		} else {
			j = k
		}
	}
	if i >= len(c.points) {
		return nil, nil, false
	}
	cp := c.points[i]
	tp := cp.Find(t)
	return cp, tp, tp != nil
}
