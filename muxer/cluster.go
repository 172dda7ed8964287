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

// Cluster groups SimpleBlocks under a common base timecode. Its header is
// written lazily on the first frame; its size field is reserved as an
// 8-byte unknown-size placeholder and back-patched on Finalize when the
// sink can seek.
type Cluster struct {
	timecode      uint64
	w             webm.Writer
	finalized     bool
	headerWritten bool
	payloadSize   uint64
	slot          sizeSlot
}

func newCluster(timecode uint64, w webm.Writer) *Cluster {
	return &Cluster{
		timecode: timecode,
		w:        w,
	}
}

// AddFrame appends one frame as a SimpleBlock. timecode is relative to
// the cluster timecode and must be non-negative.
func (c *Cluster) AddFrame(frame []byte, trackNumber uint64, timecode int16, isKey bool) error {
	if c.finalized {
		return fmt.Errorf("cluster: %w", webm.ErrFinalized)
	}
	if !c.headerWritten {
		if err := c.writeHeader(); err != nil {
			return err
		}
	}
	size, err := writeSimpleBlock(c.w, frame, trackNumber, timecode, isKey)
	if err != nil {
		return err
	}
	c.addPayloadSize(size)
	return nil
}

func (c *Cluster) addPayloadSize(size uint64) {
	c.payloadSize += size
}

// Finalize closes the cluster and back-patches its size field on a
// seekable sink.
func (c *Cluster) Finalize() error {
	if c.finalized {
		return fmt.Errorf("cluster: %w", webm.ErrFinalized)
	}
	if !c.headerWritten {
		return fmt.Errorf("cluster header not written: %w", webm.ErrInvalidArgument)
	}
	if err := c.slot.commit(c.w, c.payloadSize); err != nil {
		return err
	}
	c.finalized = true
	return nil
}

func (c *Cluster) writeHeader() error {
	if err := writeID(c.w, webm.IDCluster); err != nil {
		return err
	}
	slot, err := reserveSize(c.w)
	if err != nil {
		return err
	}
	c.slot = slot
	if err := writeElementUInt(c.w, webm.IDTimecode, c.timecode); err != nil {
		return err
	}
	c.addPayloadSize(ebmlUIntElementSize(webm.IDTimecode, c.timecode))
	c.headerWritten = true
	return nil
}

// Timecode returns the cluster's base timecode in timecode-scale ticks.
func (c *Cluster) Timecode() uint64 {
	return c.timecode
}

// PayloadSize returns the running payload size in bytes.
func (c *Cluster) PayloadSize() uint64 {
	return c.payloadSize
}
