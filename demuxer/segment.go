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

// Package demuxer parses WebM container files from a positioned byte
// source. Parsing is crank-driven: any operation may report that the
// source does not yet hold enough bytes, and is safe to retry once more
// have arrived.
package demuxer

import (
	"errors"
	"io"

	webm "github.com/Acidburn0zzz/webm.libwebm"
)

// defaultClusterCapacity seeds the cluster index when no duration is
// known.
const defaultClusterCapacity = 2048

// Segment is the parsed Segment element: its metadata, tracks, cue index,
// and the incrementally grown cluster array.
type Segment struct {
	r     webm.Reader
	start int64 // payload start
	size  int64
	pos   int64

	info   *SegmentInfo
	tracks *Tracks
	cues   *Cues

	clusters []*Cluster
}

// NewSegment scans level-0 elements from pos (normally the position
// returned by EBMLHeader.Parse) until the Segment element and constructs
// a Segment covering its payload.
func NewSegment(r webm.Reader, pos int64) (*Segment, error) {
	total, available := r.Length()

	for pos < total {
		width, err := vintLength(r, pos)
		if err != nil {
			return nil, err
		}
		if pos+int64(width) > total {
			return nil, webm.ErrFormatInvalid
		}
		if pos+int64(width) > available {
			return nil, webm.NeedMore(pos + int64(width))
		}
		id, n, err := readVInt(r, pos)
		if err != nil {
			return nil, err
		}
		pos += int64(n)

		width, err = vintLength(r, pos)
		if err != nil {
			return nil, err
		}
		if pos+int64(width) > total {
			return nil, webm.ErrFormatInvalid
		}
		if pos+int64(width) > available {
			return nil, webm.NeedMore(pos + int64(width))
		}
		size, n, err := readVInt(r, pos)
		if err != nil {
			return nil, err
		}
		pos += int64(n)

		if pos+size > total {
			return nil, webm.ErrFormatInvalid
		}

		if id == idSegment {
			return &Segment{r: r, start: pos, size: size, pos: pos}, nil
		}

		pos += size
	}

	return &Segment{r: r, start: pos, pos: pos}, nil
}

// ParseHeaders walks level-1 elements, materializing SegmentInfo, Tracks,
// and Cues on first sight, and stops at the first Cluster. SegmentInfo
// and Tracks are required; Cues is optional.
func (s *Segment) ParseHeaders() error {
	_, available := s.r.Length()
	stop := s.start + s.size

	for s.pos < stop {
		pos := s.pos

		width, err := vintLength(s.r, pos)
		if err != nil {
			return err
		}
		if pos+int64(width) > stop {
			return webm.ErrFormatInvalid
		}
		if pos+int64(width) > available {
			return webm.NeedMore(pos + int64(width))
		}
		id, n, err := readVInt(s.r, pos)
		if err != nil {
			return err
		}
		pos += int64(n)

		width, err = vintLength(s.r, pos)
		if err != nil {
			return err
		}
		if pos+int64(width) > stop {
			return webm.ErrFormatInvalid
		}
		if pos+int64(width) > available {
			return webm.NeedMore(pos + int64(width))
		}
		size, n, err := readVInt(s.r, pos)
		if err != nil {
			return err
		}
		pos += int64(n)

		if pos+size > stop {
			return webm.ErrFormatInvalid
		}

		// Header elements are consumed whole or not at all.
		if pos+size > available {
			return webm.NeedMore(pos + size)
		}

		switch id {
		case idInfo:
			if s.info == nil {
				info, err := newSegmentInfo(s.r, pos, size)
				if err != nil {
					return err
				}
				s.info = info
			}
		case idTracks:
			if s.tracks == nil {
				tracks, err := newTracks(s, pos, size)
				if err != nil {
					return err
				}
				s.tracks = tracks
			}
		case idCues:
			if s.cues == nil {
				cues, err := newCues(s, pos, size)
				if err != nil {
					return err
				}
				s.cues = cues
			}
		case idCluster:
			if s.info == nil || s.tracks == nil {
				return webm.ErrFormatInvalid
			}
			return nil
		}

		s.pos = pos + size
	}

	if s.info == nil || s.tracks == nil {
		return webm.ErrFormatInvalid
	}
	return nil
}

// ParseCluster discovers the next cluster, appends it to the cluster
// array, and returns it. The cluster body is guaranteed resident: either
// the element following the cluster has been read, or, at end of segment,
// the cluster's last byte has. Returns io.EOF when the segment holds no
// further clusters.
func (s *Segment) ParseCluster() (*Cluster, error) {
	stop := s.start + s.size

	pos := s.pos
	off := int64(-1)
	var idpos int64

	for pos < stop {
		idpos = pos
		id, n, err := syncReadVInt(s.r, pos, stop)
		if err != nil {
			return nil, err
		}
		pos += int64(n)

		size, n, err := syncReadVInt(s.r, pos, stop)
		if err != nil {
			return nil, err
		}
		pos += int64(n)

		if size == 0 {
			continue
		}

		pos += size
		if pos > stop {
			return nil, webm.ErrFormatInvalid
		}

		if id == idCluster {
			off = idpos - s.start
			break
		}

		// A cue index placed after the clusters is still wanted for
		// seeking; everything else (Void, SeekHead, ...) is skipped.
		if id == idCues && s.cues == nil {
			cues, err := newCues(s, pos-size, size)
			if err != nil {
				return nil, err
			}
			s.cues = cues
		}
	}

	if off < 0 {
		s.pos = stop
		return nil, io.EOF
	}

	if pos >= stop {
		// The cluster is the segment's last element, so there is no
		// following element to read. Touch its last byte instead to get
		// the same residency guarantee.
		var b [1]byte
		if err := s.r.Read(pos-1, b[:]); err != nil {
			return nil, err
		}
		s.pos = stop
	} else {
		next := pos
		_, n, err := syncReadVInt(s.r, pos, stop)
		if err != nil {
			return nil, err
		}
		pos += int64(n)
		if _, _, err := syncReadVInt(s.r, pos, stop); err != nil {
			return nil, err
		}
		s.pos = next
	}

	c := newCluster(s, len(s.clusters), off)
	s.appendCluster(c)
	return c, nil
}

// appendCluster grows the cluster array geometrically, seeding the
// capacity from the declared duration when one is known.
func (s *Segment) appendCluster(c *Cluster) {
	if len(s.clusters) < cap(s.clusters) {
		s.clusters = append(s.clusters, c)
		return
	}

	var n int
	switch {
	case cap(s.clusters) > 0:
		n = 2 * cap(s.clusters)
	case s.info == nil || s.info.Duration() <= 0:
		n = defaultClusterCapacity
	default:
		n = int((s.info.Duration() + 999999999) / 1000000000)
		if n < 1 {
			n = 1
		}
	}

	grown := make([]*Cluster, len(s.clusters), n)
	copy(grown, s.clusters)
	s.clusters = append(grown, c)
}

// Load parses the remainder of the segment in one pass, materializing
// every cluster and any header element not seen yet. It needs the whole
// segment to be available.
func (s *Segment) Load() error {
	stop := s.start + s.size

	for s.pos < stop {
		pos := s.pos

		id, n, err := readVInt(s.r, pos)
		if err != nil {
			return err
		}
		idpos := pos
		pos += int64(n)

		size, n, err := readVInt(s.r, pos)
		if err != nil {
			return err
		}
		pos += int64(n)

		if pos+size > stop {
			return webm.ErrFormatInvalid
		}

		switch id {
		case idCluster:
			s.appendCluster(newCluster(s, len(s.clusters), idpos-s.start))
		case idCues:
			if s.cues == nil {
				cues, err := newCues(s, pos, size)
				if err != nil {
					return err
				}
				s.cues = cues
			}
		case idInfo:
			if s.info == nil {
				info, err := newSegmentInfo(s.r, pos, size)
				if err != nil {
					return err
				}
				s.info = info
			}
		case idTracks:
			if s.tracks == nil {
				tracks, err := newTracks(s, pos, size)
				if err != nil {
					return err
				}
				s.tracks = tracks
			}
		}

		s.pos = pos + size
	}

	if s.info == nil || s.tracks == nil || len(s.clusters) == 0 {
		return webm.ErrFormatInvalid
	}
	return nil
}

// Unparsed returns the number of segment bytes not yet visited by
// ParseHeaders/ParseCluster/Load.
func (s *Segment) Unparsed() int64 {
	return s.start + s.size - s.pos
}

// Info returns the segment metadata, or nil before ParseHeaders.
func (s *Segment) Info() *SegmentInfo {
	return s.info
}

// Tracks returns the parsed tracks, or nil before ParseHeaders.
func (s *Segment) Tracks() *Tracks {
	return s.tracks
}

// Cues returns the cue index, or nil if the file carries none (or it has
// not been reached yet).
func (s *Segment) Cues() *Cues {
	return s.cues
}

// Count returns the number of clusters discovered so far.
func (s *Segment) Count() int {
	return len(s.clusters)
}

// First returns the first cluster, or nil if none is loaded.
func (s *Segment) First() *Cluster {
	if len(s.clusters) == 0 {
		return nil
	}
	return s.clusters[0]
}

// Last returns the last discovered cluster, or nil.
func (s *Segment) Last() *Cluster {
	if len(s.clusters) == 0 {
		return nil
	}
	return s.clusters[len(s.clusters)-1]
}

// Next returns the cluster after c, or nil past the end of the array.
func (s *Segment) Next(c *Cluster) *Cluster {
	idx := c.Index() + 1
	if idx >= len(s.clusters) {
		return nil
	}
	return s.clusters[idx]
}

// GetCluster returns the greatest cluster with time <= timeNS, or the
// first cluster when timeNS precedes it.
func (s *Segment) GetCluster(timeNS int64) (*Cluster, error) {
	if len(s.clusters) == 0 {
		return nil, io.EOF
	}

	t, err := s.clusters[0].Time()
	if err != nil {
		return nil, err
	}
	if timeNS <= t {
		return s.clusters[0], nil
	}

	i, j := 0, len(s.clusters)
	for i < j {
		// invariant:
		// [0, i) <= timeNS
		// [i, j) ?
		// [j, len) > timeNS
		k := i + (j-i)/2
		t, err := s.clusters[k].Time()
		if err != nil {
			return nil, err
		}
		if t <= timeNS {
			i = k + 1
		} else {
			j = k
		}
	}

	return s.clusters[i-1], nil
}

// Seek finds the cluster and block entry to resume the given track from
// at timeNS. Audio tracks use a plain binary search over cluster times.
// Video tracks consult the cue index first and fall back to a cluster
// search that walks back to the nearest preceding key frame.
func (s *Segment) Seek(timeNS int64, t *Track) (*Cluster, *BlockEntry, error) {
	if len(s.clusters) == 0 {
		return nil, nil, io.EOF
	}

	first := s.clusters[0]
	ft, err := first.Time()
	if err != nil {
		return nil, nil, err
	}
	if timeNS <= ft {
		e, err := first.Entry(t)
		if err != nil {
			return nil, nil, err
		}
		return first, e, nil
	}

	if t.Type == webm.TrackTypeAudio {
		c, err := s.GetCluster(timeNS)
		if err != nil {
			return nil, nil, err
		}
		e, err := c.Entry(t)
		if err != nil {
			return nil, nil, err
		}
		return c, e, nil
	}

	if c, e, ok, err := s.searchCues(timeNS, t); err != nil {
		return nil, nil, err
	} else if ok {
		return c, e, nil
	}

	c, err := s.GetCluster(timeNS)
	if err != nil {
		return nil, nil, err
	}

	e, err := c.Entry(t)
	if err != nil {
		return nil, nil, err
	}
	if e != nil {
		// The cluster may hold a later key frame still at or before the
		// requested time, but the first one found is good enough here.
		bt, err := e.Block().Time(c)
		if err != nil {
			return nil, nil, err
		}
		if bt <= timeNS {
			return c, e, nil
		}
	}

	for idx := c.Index(); idx > 0; idx-- {
		prev := s.clusters[idx-1]
		e, err := prev.MaxKey(t)
		if err != nil {
			return nil, nil, err
		}
		if e != nil {
			return prev, e, nil
		}
	}

	return nil, nil, io.EOF
}

// searchCues resolves timeNS through the cue index and locates the
// referenced cluster by its position.
func (s *Segment) searchCues(timeNS int64, t *Track) (*Cluster, *BlockEntry, bool, error) {
	if s.cues == nil || len(s.clusters) == 0 {
		return nil, nil, false, nil
	}

	last := s.clusters[len(s.clusters)-1]
	lastNS, err := last.Time()
	if err != nil {
		return nil, nil, false, err
	}

	// Clamp to what is loaded; a cue past the parsed range would point at
	// a cluster we do not have yet.
	if s.Unparsed() > 0 && timeNS > lastNS {
		timeNS = lastNS
	}

	cp, tp, ok := s.cues.Find(timeNS, t)
	if !ok {
		return nil, nil, false, nil
	}

	i, j := 0, len(s.clusters)
	for i < j {
		// invariant:
		// [0, i) < tp.Pos
		// [i, j) ?
		// [j, len) > tp.Pos
		k := i + (j-i)/2
		c := s.clusters[k]
		pos := c.Position()
		switch {
		case pos < tp.Pos:
			i = k + 1
		case pos > tp.Pos:
			j = k
		default:
			e, err := c.EntryAt(cp, tp)
			if err != nil {
				if errors.Is(err, webm.ErrFormatInvalid) {
					return nil, nil, false, nil
				}
				return nil, nil, false, err
			}
			return c, e, true, nil
		}
	}

	return nil, nil, false, nil
}
