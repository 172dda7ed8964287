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

// CuePoint indexes one cluster for seeking: the cluster's base timecode,
// the track it indexes, and the cluster's offset from the start of the
// segment payload. BlockNumber is 1-based and omitted on the wire when 1.
type CuePoint struct {
	Time        uint64
	Track       uint64
	ClusterPos  uint64
	BlockNumber uint64
}

func newCuePoint(time, track, clusterPos uint64) *CuePoint {
	return &CuePoint{
		Time:        time,
		Track:       track,
		ClusterPos:  clusterPos,
		BlockNumber: 1,
	}
}

func (cp *CuePoint) payloadSize() uint64 {
	size := ebmlUIntElementSize(webm.IDCueClusterPosition, cp.ClusterPos)
	size += ebmlUIntElementSize(webm.IDCueTrack, cp.Track)
	if cp.BlockNumber > 1 {
		size += ebmlUIntElementSize(webm.IDCueBlockNumber, cp.BlockNumber)
	}
	trackPosSize := ebmlMasterElementSize(webm.IDCueTrackPositions, size) + size
	return ebmlUIntElementSize(webm.IDCueTime, cp.Time) + trackPosSize
}

func (cp *CuePoint) size() uint64 {
	payload := cp.payloadSize()
	return ebmlMasterElementSize(webm.IDCuePoint, payload) + payload
}

func (cp *CuePoint) write(w webm.Writer) error {
	if cp.Track == 0 || cp.ClusterPos == 0 {
		return fmt.Errorf("cue point missing track or cluster position: %w", webm.ErrInvalidArgument)
	}
	trackPosPayload := ebmlUIntElementSize(webm.IDCueClusterPosition, cp.ClusterPos)
	trackPosPayload += ebmlUIntElementSize(webm.IDCueTrack, cp.Track)
	if cp.BlockNumber > 1 {
		trackPosPayload += ebmlUIntElementSize(webm.IDCueBlockNumber, cp.BlockNumber)
	}
	payload := cp.payloadSize()

	if err := writeMasterElement(w, webm.IDCuePoint, payload); err != nil {
		return err
	}
	start := w.Position()

	if err := writeElementUInt(w, webm.IDCueTime, cp.Time); err != nil {
		return err
	}
	if err := writeMasterElement(w, webm.IDCueTrackPositions, trackPosPayload); err != nil {
		return err
	}
	if err := writeElementUInt(w, webm.IDCueTrack, cp.Track); err != nil {
		return err
	}
	if err := writeElementUInt(w, webm.IDCueClusterPosition, cp.ClusterPos); err != nil {
		return err
	}
	if cp.BlockNumber > 1 {
		if err := writeElementUInt(w, webm.IDCueBlockNumber, cp.BlockNumber); err != nil {
			return err
		}
	}

	if got := uint64(w.Position() - start); got != payload {
		return fmt.Errorf("cue point wrote %d payload bytes, want %d: %w", got, payload, webm.ErrInvalidArgument)
	}
	return nil
}

// Cues is the cue index. Points are appended in non-decreasing time order
// by construction: the muxer adds one per cluster open, and cluster open
// times are monotonic.
type Cues struct {
	points []*CuePoint
}

func (c *Cues) AddCue(cp *CuePoint) error {
	if cp == nil {
		return fmt.Errorf("nil cue point: %w", webm.ErrInvalidArgument)
	}
	c.points = append(c.points, cp)
	return nil
}

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

func (c *Cues) write(w webm.Writer) error {
	var size uint64
	for _, cp := range c.points {
		size += cp.size()
	}
	if err := writeMasterElement(w, webm.IDCues, size); err != nil {
		return err
	}
	start := w.Position()
	for _, cp := range c.points {
		if err := cp.write(w); err != nil {
			return err
		}
	}
	if got := uint64(w.Position() - start); got != size {
		return fmt.Errorf("cues wrote %d payload bytes, want %d: %w", got, size, webm.ErrInvalidArgument)
	}
	return nil
}
