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

// seekEntryCount caps the number of seek entries: SegmentInfo, Tracks,
// Cues, and the first Cluster.
const seekEntryCount = 4

// SeekHead is the index at the start of the segment. reserve emits a Void
// element sized for the worst case; finalize rewrites the real table in
// place and fills the residue with one Void, so the reserved byte range
// never moves.
type SeekHead struct {
	ids      [seekEntryCount]uint64
	pos      [seekEntryCount]uint64
	startPos int64
}

func newSeekHead() *SeekHead {
	return &SeekHead{startPos: -1}
}

// reserve writes the placeholder Void covering the worst-case table.
func (sh *SeekHead) reserve(w webm.Writer) error {
	entrySize := seekEntryCount * sh.maxEntrySize()
	size := ebmlMasterElementSize(webm.IDSeekHead, entrySize)

	sh.startPos = w.Position()
	if _, err := writeVoid(w, size+entrySize); err != nil {
		return err
	}
	return nil
}

// AddEntry records a seek entry. id is the on-wire element ID; pos is the
// element's offset from the start of the segment payload.
func (sh *SeekHead) AddEntry(id uint64, pos uint64) error {
	for i := range sh.ids {
		if sh.ids[i] == 0 {
			sh.ids[i] = id
			sh.pos[i] = pos
			return nil
		}
	}
	return fmt.Errorf("seek head full: %w", webm.ErrInvalidArgument)
}

// finalize rewrites the reserved range with the populated table. With no
// entries the Void is left in place. A non-seekable sink leaves the
// reservation untouched.
func (sh *SeekHead) finalize(w webm.Writer) error {
	if !w.Seekable() {
		return nil
	}
	if sh.startPos < 0 {
		return fmt.Errorf("seek head not reserved: %w", webm.ErrInvalidArgument)
	}

	var payloadSize uint64
	var entrySize [seekEntryCount]uint64
	for i := range sh.ids {
		if sh.ids[i] == 0 {
			continue
		}
		entrySize[i] = ebmlUIntElementSize(webm.IDSeekID, sh.ids[i])
		entrySize[i] += ebmlUIntElementSize(webm.IDSeekPosition, sh.pos[i])
		payloadSize += ebmlMasterElementSize(webm.IDSeek, entrySize[i]) + entrySize[i]
	}
	if payloadSize == 0 {
		return nil
	}

	pos := w.Position()
	if err := w.Seek(sh.startPos); err != nil {
		return err
	}

	if err := writeMasterElement(w, webm.IDSeekHead, payloadSize); err != nil {
		return err
	}
	for i := range sh.ids {
		if sh.ids[i] == 0 {
			continue
		}
		if err := writeMasterElement(w, webm.IDSeek, entrySize[i]); err != nil {
			return err
		}
		if err := writeElementUInt(w, webm.IDSeekID, sh.ids[i]); err != nil {
			return err
		}
		if err := writeElementUInt(w, webm.IDSeekPosition, sh.pos[i]); err != nil {
			return err
		}
	}

	totalEntrySize := seekEntryCount * sh.maxEntrySize()
	totalSize := ebmlMasterElementSize(webm.IDSeekHead, totalEntrySize) + totalEntrySize
	sizeLeft := totalSize - uint64(w.Position()-sh.startPos)

	if sizeLeft > 0 {
		if _, err := writeVoid(w, sizeLeft); err != nil {
			return err
		}
	}
	return w.Seek(pos)
}

// maxEntrySize returns the worst-case serialized size of one Seek entry.
func (sh *SeekHead) maxEntrySize() uint64 {
	maxPayload := ebmlUIntElementSize(webm.IDSeekID, 0xFFFFFFFF)
	maxPayload += ebmlUIntElementSize(webm.IDSeekPosition, 0xFFFFFFFFFFFFFFFF)
	return ebmlMasterElementSize(webm.IDSeek, maxPayload) + maxPayload
}
