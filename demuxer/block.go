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

// Block is one decoded (Simple)Block: track number, relative timecode,
// flags, and the position of the raw frame bytes. The frame itself is not
// copied; fetch it with Read or Data.
type Block struct {
	start int64
	size  int64

	track    int64
	timecode int16
	flags    byte

	frameOff  int64
	frameSize int64
}

func newBlock(r webm.Reader, start, size int64) (*Block, error) {
	b := &Block{start: start, size: size}

	pos := start
	stop := start + size

	track, n, err := readVInt(r, pos)
	if err != nil {
		return nil, err
	}
	if track <= 0 {
		return nil, webm.ErrFormatInvalid
	}
	b.track = track
	pos += int64(n)

	if stop-pos < 3 {
		return nil, webm.ErrFormatInvalid
	}
	tc, err := readSInt(r, pos, 2)
	if err != nil {
		return nil, err
	}
	b.timecode = int16(tc)
	pos += 2

	var fb [1]byte
	if err := r.Read(pos, fb[:]); err != nil {
		return nil, err
	}
	b.flags = fb[0]
	pos++

	b.frameOff = pos
	b.frameSize = stop - pos
	return b, nil
}

// TrackNumber returns the track the block belongs to.
func (b *Block) TrackNumber() int64 {
	return b.track
}

// Timecode returns the block timecode in ticks, relative to its cluster.
func (b *Block) Timecode() int16 {
	return b.timecode
}

// AbsTimecode returns the block timecode in ticks from the start of the
// segment.
func (b *Block) AbsTimecode(c *Cluster) (int64, error) {
	tc, err := c.Timecode()
	if err != nil {
		return 0, err
	}
	return tc + int64(b.timecode), nil
}

// Time returns the block time in nanoseconds.
func (b *Block) Time(c *Cluster) (int64, error) {
	tc, err := b.AbsTimecode(c)
	if err != nil {
		return 0, err
	}
	return tc * c.segment.Info().TimecodeScale(), nil
}

// IsKey reports the key-frame flag.
func (b *Block) IsKey() bool {
	return b.flags&0x80 != 0
}

func (b *Block) setKey(key bool) {
	if key {
		b.flags |= 0x80
	} else {
		b.flags &= 0x7F
	}
}

// Size returns the frame length in bytes.
func (b *Block) Size() int64 {
	return b.frameSize
}

// Read fills buf, which must be at least Size bytes, with the frame.
func (b *Block) Read(r webm.Reader, buf []byte) error {
	if int64(len(buf)) < b.frameSize {
		return webm.ErrInvalidArgument
	}
	return r.Read(b.frameOff, buf[:b.frameSize])
}

// Data returns the frame bytes in a fresh buffer.
func (b *Block) Data(r webm.Reader) ([]byte, error) {
	buf := make([]byte, b.frameSize)
	if err := r.Read(b.frameOff, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// BlockEntry is one entry of a cluster's block index: either a bare
// SimpleBlock or a BlockGroup wrapping a Block.
type BlockEntry struct {
	cluster *Cluster
	index   int
	block   *Block

	group        bool
	prevTimecode int16
	nextTimecode int16
}

// Block returns the entry's block.
func (e *BlockEntry) Block() *Block {
	return e.block
}

// Cluster returns the cluster owning the entry.
func (e *BlockEntry) Cluster() *Cluster {
	return e.cluster
}

// Index returns the entry's position within its cluster.
func (e *BlockEntry) Index() int {
	return e.index
}

// IsGroup reports whether the entry came from a BlockGroup.
func (e *BlockEntry) IsGroup() bool {
	return e.group
}

// PrevTimecode returns a BlockGroup's backward reference timecode, if
// any.
func (e *BlockEntry) PrevTimecode() int16 {
	return e.prevTimecode
}

// NextTimecode returns a BlockGroup's forward reference timecode, if any.
func (e *BlockEntry) NextTimecode() int16 {
	return e.nextTimecode
}

// IsBFrame reports whether the entry references a later block.
func (e *BlockEntry) IsBFrame() bool {
	return e.group && e.nextTimecode > 0
}

func parseSimpleBlock(c *Cluster, index int, start, size int64) (*BlockEntry, error) {
	b, err := newBlock(c.segment.r, start, size)
	if err != nil {
		return nil, err
	}
	return &BlockEntry{cluster: c, index: index, block: b}, nil
}

func parseBlockGroup(c *Cluster, index int, start, size int64) (*BlockEntry, error) {
	r := c.segment.r
	e := &BlockEntry{cluster: c, index: index, group: true}

	pos := start
	stop := start + size

	simple := false
	referenced := false

	for pos < stop {
		if t, ok, err := matchSInt(r, &pos, idReferenceBlock); err != nil {
			return nil, err
		} else if ok {
			switch {
			case t < 0:
				e.prevTimecode = t
			case t > 0:
				e.nextTimecode = t
			default:
				return nil, webm.ErrFormatInvalid
			}
			referenced = true
		} else {
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

			switch id {
			case idSimpleBlock:
				simple = true
				fallthrough
			case idBlock:
				if e.block != nil {
					// Priority-ranked sibling blocks are outside the
					// WebM profile.
					return nil, webm.ErrFormatInvalid
				}
				b, err := newBlock(r, pos, childSize)
				if err != nil {
					return nil, err
				}
				e.block = b
			}

			pos += childSize
			if pos > stop {
				return nil, webm.ErrFormatInvalid
			}
		}
	}

	if e.block == nil {
		return nil, webm.ErrFormatInvalid
	}
	if !simple {
		e.block.setKey(!referenced)
	}
	return e, nil
}
