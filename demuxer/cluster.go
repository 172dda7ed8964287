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
	"fmt"

	webm "github.com/Acidburn0zzz/webm.libwebm"
)

// Cluster is one cluster of the segment's cluster index. It is created
// from the cluster's file offset alone; the timecode and the block index
// are loaded lazily on first access. A negative pos marks a cluster whose
// header has not been verified yet.
type Cluster struct {
	segment  *Segment
	index    int
	pos      int64 // relative to segment payload start; negative until loaded
	size     int64
	timecode int64

	entries []*BlockEntry
}

func newCluster(s *Segment, index int, off int64) *Cluster {
	return &Cluster{
		segment:  s,
		index:    index,
		pos:      -off,
		size:     -1,
		timecode: -1,
	}
}

// Index returns the cluster's position in the segment's cluster array.
func (c *Cluster) Index() int {
	return c.index
}

// Position returns the cluster's offset from the segment payload start.
func (c *Cluster) Position() int64 {
	if c.pos < 0 {
		return -c.pos
	}
	return c.pos
}

// load verifies the Cluster element at the recorded offset and scans for
// the required Timecode child.
func (c *Cluster) load() error {
	if c.pos > 0 {
		return nil
	}
	if c.pos == 0 {
		return fmt.Errorf("cluster has no offset: %w", webm.ErrFormatInvalid)
	}

	r := c.segment.r
	c.pos = -c.pos
	pos := c.segment.start + c.pos

	id, n, err := readVInt(r, pos)
	if err != nil {
		c.pos = -c.pos
		return err
	}
	if id != idCluster {
		c.pos = -c.pos
		return fmt.Errorf("no cluster at offset %d: %w", c.pos, webm.ErrFormatInvalid)
	}
	pos += int64(n)

	size, n, err := readVInt(r, pos)
	if err != nil {
		c.pos = -c.pos
		return err
	}
	pos += int64(n)

	c.size = size
	stop := pos + size

	timecode := int64(-1)
	for pos < stop {
		if v, ok, err := matchUInt(r, &pos, idTimecode); err != nil {
			c.pos = -c.pos
			return err
		} else if ok {
			timecode = v
			break
		}
		id, n, err := readVInt(r, pos)
		if err != nil {
			c.pos = -c.pos
			return err
		}
		pos += int64(n)
		childSize, n, err := readVInt(r, pos)
		if err != nil {
			c.pos = -c.pos
			return err
		}
		pos += int64(n)
		if id == idBlockGroup || id == idSimpleBlock {
			break
		}
		pos += childSize
		if pos > stop {
			c.pos = -c.pos
			return webm.ErrFormatInvalid
		}
	}

	if timecode < 0 {
		c.pos = -c.pos
		return fmt.Errorf("cluster without timecode: %w", webm.ErrFormatInvalid)
	}
	c.timecode = timecode
	return nil
}

// loadBlockEntries builds the block index: one pass counting BlockGroup
// and SimpleBlock children, a second pass materializing them.
func (c *Cluster) loadBlockEntries() error {
	if c.entries != nil {
		return nil
	}
	if err := c.load(); err != nil {
		return err
	}

	r := c.segment.r
	pos := c.segment.start + c.pos

	_, n, err := readVInt(r, pos)
	if err != nil {
		return err
	}
	pos += int64(n)
	size, n, err := readVInt(r, pos)
	if err != nil {
		return err
	}
	pos += int64(n)
	if size != c.size {
		return webm.ErrFormatInvalid
	}

	stop := pos + size

	count := 0
	idx := pos
	for idx < stop {
		if v, ok, err := matchUInt(r, &idx, idTimecode); err != nil {
			return err
		} else if ok {
			if v != c.timecode {
				return webm.ErrFormatInvalid
			}
			continue
		}
		id, n, err := readVInt(r, idx)
		if err != nil {
			return err
		}
		idx += int64(n)
		childSize, n, err := readVInt(r, idx)
		if err != nil {
			return err
		}
		idx += int64(n)
		if id == idBlockGroup || id == idSimpleBlock {
			count++
		}
		idx += childSize
		if idx > stop {
			return webm.ErrFormatInvalid
		}
	}

	if count == 0 {
		c.entries = []*BlockEntry{}
		return nil
	}

	entries := make([]*BlockEntry, 0, count)
	for pos < stop {
		if _, ok, err := matchUInt(r, &pos, idTimecode); err != nil {
			return err
		} else if ok {
			continue
		}
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
		case idBlockGroup:
			e, err := parseBlockGroup(c, len(entries), pos, childSize)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		case idSimpleBlock:
			e, err := parseSimpleBlock(c, len(entries), pos, childSize)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}

		pos += childSize
		if pos > stop {
			return webm.ErrFormatInvalid
		}
	}

	c.entries = entries
	return nil
}

// Timecode returns the cluster's base timecode in ticks.
func (c *Cluster) Timecode() (int64, error) {
	if err := c.load(); err != nil {
		return 0, err
	}
	return c.timecode, nil
}

// Time returns the cluster's base time in nanoseconds.
func (c *Cluster) Time() (int64, error) {
	tc, err := c.Timecode()
	if err != nil {
		return 0, err
	}
	return tc * c.segment.Info().TimecodeScale(), nil
}

// FirstTime returns the time of the cluster's first block, or the cluster
// time for an empty cluster.
func (c *Cluster) FirstTime() (int64, error) {
	e, err := c.First()
	if err != nil {
		return 0, err
	}
	if e == nil {
		return c.Time()
	}
	return e.Block().Time(c)
}

// First returns the first block entry, or nil for an empty cluster.
func (c *Cluster) First() (*BlockEntry, error) {
	if err := c.loadBlockEntries(); err != nil {
		return nil, err
	}
	if len(c.entries) == 0 {
		return nil, nil
	}
	return c.entries[0], nil
}

// Last returns the last block entry, or nil for an empty cluster.
func (c *Cluster) Last() (*BlockEntry, error) {
	if err := c.loadBlockEntries(); err != nil {
		return nil, err
	}
	if len(c.entries) == 0 {
		return nil, nil
	}
	return c.entries[len(c.entries)-1], nil
}

// Next returns the entry after e, or nil at the end of the cluster.
func (c *Cluster) Next(e *BlockEntry) *BlockEntry {
	if e == nil {
		return nil
	}
	idx := e.Index() + 1
	if idx >= len(c.entries) {
		return nil
	}
	return c.entries[idx]
}

// Entry returns the first entry of the cluster acceptable for the track:
// any block for audio, a key frame for video. Returns nil if none
// matches.
func (c *Cluster) Entry(t *Track) (*BlockEntry, error) {
	if err := c.loadBlockEntries(); err != nil {
		return nil, err
	}
	for _, e := range c.entries {
		if e.Block().TrackNumber() != t.Number {
			continue
		}
		if t.vetEntry(e) {
			return e, nil
		}
	}
	return nil, nil
}

// EntryAt resolves a cue's track position to the indexed block entry.
func (c *Cluster) EntryAt(cp *CuePoint, tp *TrackPosition) (*BlockEntry, error) {
	if tp.Block < 1 {
		return nil, webm.ErrFormatInvalid
	}
	if err := c.loadBlockEntries(); err != nil {
		return nil, err
	}
	if tp.Block > int64(len(c.entries)) {
		return nil, webm.ErrFormatInvalid
	}
	e := c.entries[tp.Block-1]
	if e.Block().TrackNumber() != tp.Track {
		return nil, webm.ErrFormatInvalid
	}
	tc, err := e.Block().AbsTimecode(c)
	if err != nil {
		return nil, err
	}
	if tc != cp.Timecode() {
		return nil, webm.ErrFormatInvalid
	}
	return e, nil
}

// MaxKey returns the last key-frame entry of the cluster on the given
// track, or nil if there is none.
func (c *Cluster) MaxKey(t *Track) (*BlockEntry, error) {
	if err := c.loadBlockEntries(); err != nil {
		return nil, err
	}
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := c.entries[i]
		if e.Block().TrackNumber() != t.Number {
			continue
		}
		if e.Block().IsKey() {
			return e, nil
		}
	}
	return nil, nil
}
