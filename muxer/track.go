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

	"github.com/google/uuid"

	webm "github.com/Acidburn0zzz/webm.libwebm"
)

// VideoSettings is the video refinement of a Track.
type VideoSettings struct {
	Width  uint64
	Height uint64
}

// AudioSettings is the audio refinement of a Track.
type AudioSettings struct {
	SampleRate float32
	Channels   uint64
	BitDepth   uint64 // written only when > 0
}

// Track describes one TrackEntry. Exactly one of Video and Audio must be
// set. Number is assigned by the Tracks collection on add.
type Track struct {
	Number       uint64
	UID          uint64
	Type         uint64
	CodecID      string
	CodecPrivate []byte

	Video *VideoSettings
	Audio *AudioSettings
}

// newTrackUID draws a random 56-bit track UID. The high byte is left zero
// to sidestep sign trouble in readers that store UIDs in signed integers.
func newTrackUID() uint64 {
	u := uuid.New()
	var uid uint64
	for i := 0; i < 7; i++ {
		uid = uid<<8 | uint64(u[i])
	}
	return uid
}

func (t *Track) validate() error {
	if t.CodecID == "" {
		return fmt.Errorf("track codec ID is empty: %w", webm.ErrInvalidArgument)
	}
	if (t.Video == nil) == (t.Audio == nil) {
		return fmt.Errorf("track needs exactly one of video and audio settings: %w", webm.ErrInvalidArgument)
	}
	return nil
}

func (t *Track) settingsPayloadSize() uint64 {
	if t.Video != nil {
		size := ebmlUIntElementSize(webm.IDPixelWidth, t.Video.Width)
		size += ebmlUIntElementSize(webm.IDPixelHeight, t.Video.Height)
		return size
	}
	size := ebmlFloatElementSize(webm.IDSamplingFrequency)
	size += ebmlUIntElementSize(webm.IDChannels, t.Audio.Channels)
	if t.Audio.BitDepth > 0 {
		size += ebmlUIntElementSize(webm.IDBitDepth, t.Audio.BitDepth)
	}
	return size
}

// payloadSize returns the size of the TrackEntry payload.
func (t *Track) payloadSize() uint64 {
	size := ebmlUIntElementSize(webm.IDTrackNumber, t.Number)
	size += ebmlUIntElementSize(webm.IDTrackUID, t.UID)
	size += ebmlUIntElementSize(webm.IDTrackType, t.Type)
	size += ebmlStringElementSize(webm.IDCodecID, t.CodecID)
	if len(t.CodecPrivate) > 0 {
		size += ebmlBytesElementSize(webm.IDCodecPrivate, t.CodecPrivate)
	}
	settingsID := uint64(webm.IDVideo)
	if t.Audio != nil {
		settingsID = webm.IDAudio
	}
	settings := t.settingsPayloadSize()
	size += ebmlMasterElementSize(settingsID, settings) + settings
	return size
}

// size returns the full serialized size of the TrackEntry element.
func (t *Track) size() uint64 {
	payload := t.payloadSize()
	return ebmlMasterElementSize(webm.IDTrackEntry, payload) + payload
}

func (t *Track) write(w webm.Writer) error {
	if err := t.validate(); err != nil {
		return err
	}
	payload := t.payloadSize()
	if err := writeMasterElement(w, webm.IDTrackEntry, payload); err != nil {
		return err
	}
	start := w.Position()

	if err := writeElementUInt(w, webm.IDTrackNumber, t.Number); err != nil {
		return err
	}
	if err := writeElementUInt(w, webm.IDTrackUID, t.UID); err != nil {
		return err
	}
	if err := writeElementUInt(w, webm.IDTrackType, t.Type); err != nil {
		return err
	}
	if err := writeElementString(w, webm.IDCodecID, t.CodecID); err != nil {
		return err
	}
	if len(t.CodecPrivate) > 0 {
		if err := writeElementBytes(w, webm.IDCodecPrivate, t.CodecPrivate); err != nil {
			return err
		}
	}

	settings := t.settingsPayloadSize()
	if t.Video != nil {
		if err := writeMasterElement(w, webm.IDVideo, settings); err != nil {
			return err
		}
		if err := writeElementUInt(w, webm.IDPixelWidth, t.Video.Width); err != nil {
			return err
		}
		if err := writeElementUInt(w, webm.IDPixelHeight, t.Video.Height); err != nil {
			return err
		}
	} else {
		if err := writeMasterElement(w, webm.IDAudio, settings); err != nil {
			return err
		}
		if err := writeElementFloat(w, webm.IDSamplingFrequency, t.Audio.SampleRate); err != nil {
			return err
		}
		if err := writeElementUInt(w, webm.IDChannels, t.Audio.Channels); err != nil {
			return err
		}
		if t.Audio.BitDepth > 0 {
			if err := writeElementUInt(w, webm.IDBitDepth, t.Audio.BitDepth); err != nil {
				return err
			}
		}
	}

	if got := uint64(w.Position() - start); got != payload {
		return fmt.Errorf("track entry wrote %d payload bytes, want %d: %w", got, payload, webm.ErrInvalidArgument)
	}
	return nil
}

// Tracks is the ordered collection of a segment's tracks. Track numbers
// are 1-based insertion order.
type Tracks struct {
	entries []*Track
}

// AddTrack validates the track, assigns its number, and appends it.
func (ts *Tracks) AddTrack(t *Track) error {
	if err := t.validate(); err != nil {
		return err
	}
	t.Number = uint64(len(ts.entries) + 1)
	if t.UID == 0 {
		t.UID = newTrackUID()
	}
	ts.entries = append(ts.entries, t)
	return nil
}

func (ts *Tracks) Count() int {
	return len(ts.entries)
}

// ByNumber returns the track with the given number, or nil.
func (ts *Tracks) ByNumber(n uint64) *Track {
	for _, t := range ts.entries {
		if t.Number == n {
			return t
		}
	}
	return nil
}

// ByIndex returns the track at idx, or nil.
func (ts *Tracks) ByIndex(idx int) *Track {
	if idx < 0 || idx >= len(ts.entries) {
		return nil
	}
	return ts.entries[idx]
}

// isVideo reports whether the given track number refers to a video track.
func (ts *Tracks) isVideo(n uint64) bool {
	t := ts.ByNumber(n)
	return t != nil && t.Type == webm.TrackTypeVideo
}

func (ts *Tracks) write(w webm.Writer) error {
	var size uint64
	for _, t := range ts.entries {
		size += t.size()
	}
	if err := writeMasterElement(w, webm.IDTracks, size); err != nil {
		return err
	}
	start := w.Position()
	for _, t := range ts.entries {
		if err := t.write(w); err != nil {
			return err
		}
	}
	if got := uint64(w.Position() - start); got != size {
		return fmt.Errorf("tracks wrote %d payload bytes, want %d: %w", got, size, webm.ErrInvalidArgument)
	}
	return nil
}
