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

// Package muxer assembles WebM files: tracks, clusters, and cue points
// serialized to a byte sink. A seekable sink gets a fully indexed file
// (back-patched sizes, duration, SeekHead, Cues); a non-seekable sink gets
// a live stream with unknown-size placeholders.
package muxer

import (
	"fmt"
	"math"

	webm "github.com/Acidburn0zzz/webm.libwebm"
)

// SegmentOption configures a Segment at construction.
type SegmentOption func(*Segment)

// WithWritingApp overrides the WritingApp string in SegmentInfo.
func WithWritingApp(app string) SegmentOption {
	return func(s *Segment) {
		s.info.WritingApp = app
	}
}

// WithTimecodeScale overrides the number of nanoseconds per timecode
// tick.
func WithTimecodeScale(scale uint64) SegmentOption {
	return func(s *Segment) {
		s.info.TimecodeScale = scale
	}
}

// WithoutCues disables cue-point generation.
func WithoutCues() SegmentOption {
	return func(s *Segment) {
		s.outputCues = false
	}
}

// Segment owns the whole output file: SegmentInfo, SeekHead, Tracks,
// Cues, and the cluster list. Tracks may be added until the first frame;
// Finalize must be the last call.
type Segment struct {
	info     *SegmentInfo
	seekHead *SeekHead
	tracks   *Tracks
	cues     *Cues
	w        webm.Writer

	headerWritten bool
	finalized     bool
	slot          sizeSlot
	payloadPos    int64

	clusters      []*Cluster
	newCluster    bool
	lastTimestamp uint64
	outputCues    bool
	cuesTrack     uint64
}

// NewSegment constructs a segment writing to w. Nothing is emitted until
// the first frame or Finalize.
func NewSegment(w webm.Writer, opts ...SegmentOption) (*Segment, error) {
	if w == nil {
		return nil, fmt.Errorf("nil writer: %w", webm.ErrInvalidArgument)
	}
	s := &Segment{
		info:       newSegmentInfo(),
		seekHead:   newSeekHead(),
		tracks:     &Tracks{},
		cues:       &Cues{},
		w:          w,
		newCluster: true,
		outputCues: true,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// AddVideoTrack adds a VP8 video track and returns its track number.
func (s *Segment) AddVideoTrack(width, height int) (uint64, error) {
	if s.headerWritten {
		return 0, fmt.Errorf("cannot add tracks after the first frame: %w", webm.ErrInvalidArgument)
	}
	t := &Track{
		Type:    webm.TrackTypeVideo,
		CodecID: webm.CodecVP8,
		Video: &VideoSettings{
			Width:  uint64(width),
			Height: uint64(height),
		},
	}
	if err := s.tracks.AddTrack(t); err != nil {
		return 0, err
	}
	return t.Number, nil
}

// AddAudioTrack adds a Vorbis audio track and returns its track number.
func (s *Segment) AddAudioTrack(sampleRate float64, channels int) (uint64, error) {
	if s.headerWritten {
		return 0, fmt.Errorf("cannot add tracks after the first frame: %w", webm.ErrInvalidArgument)
	}
	t := &Track{
		Type:    webm.TrackTypeAudio,
		CodecID: webm.CodecVorbis,
		Audio: &AudioSettings{
			SampleRate: float32(sampleRate),
			Channels:   uint64(channels),
		},
	}
	if err := s.tracks.AddTrack(t); err != nil {
		return 0, err
	}
	return t.Number, nil
}

// GetTrackByNumber returns the track with the given number, or nil.
func (s *Segment) GetTrackByNumber(n uint64) *Track {
	return s.tracks.ByNumber(n)
}

// Info returns the segment's metadata for pre-write adjustment.
func (s *Segment) Info() *SegmentInfo {
	return s.info
}

// OutputCues toggles cue-point generation.
func (s *Segment) OutputCues(enabled bool) {
	s.outputCues = enabled
}

// CuesTrack overrides the track indexed by cue points. By default the
// first video track is used, or the first track if there is no video.
func (s *Segment) CuesTrack(n uint64) error {
	if s.tracks.ByNumber(n) == nil {
		return fmt.Errorf("no track %d: %w", n, webm.ErrInvalidArgument)
	}
	s.cuesTrack = n
	return nil
}

// AddFrame appends one frame. timestamp is in nanoseconds from zero and
// must not decrease below the open cluster's base time. A key frame on a
// video track opens a new cluster.
func (s *Segment) AddFrame(frame []byte, trackNumber uint64, timestamp uint64, isKey bool) error {
	if s.finalized {
		return fmt.Errorf("add frame: %w", webm.ErrFinalized)
	}
	if len(frame) == 0 {
		return fmt.Errorf("empty frame: %w", webm.ErrInvalidArgument)
	}
	if s.tracks.ByNumber(trackNumber) == nil {
		return fmt.Errorf("no track %d: %w", trackNumber, webm.ErrInvalidArgument)
	}

	if !s.headerWritten {
		if err := s.writeSegmentHeader(true); err != nil {
			return err
		}
		if err := s.seekHead.AddEntry(webm.IDCluster, uint64(s.w.Position()-s.payloadPos)); err != nil {
			return err
		}
		if s.outputCues && s.cuesTrack == 0 {
			for i := 0; i < s.tracks.Count(); i++ {
				t := s.tracks.ByIndex(i)
				if t.Type == webm.TrackTypeVideo {
					s.cuesTrack = t.Number
					break
				}
			}
			if s.cuesTrack == 0 {
				s.cuesTrack = s.tracks.ByIndex(0).Number
			}
		}
	}

	if isKey && s.tracks.isVideo(trackNumber) {
		s.newCluster = true
	}

	// TODO: time/size heuristics for opening clusters on audio-only
	// streams.

	if s.newCluster {
		timecode := timestamp / s.info.TimecodeScale
		cluster := newCluster(timecode, s.w)
		clusterPos := uint64(s.w.Position() - s.payloadPos)

		if s.w.Seekable() {
			if n := len(s.clusters); n > 0 {
				if err := s.clusters[n-1].Finalize(); err != nil {
					return err
				}
			}
			if s.outputCues {
				if err := s.cues.AddCue(newCuePoint(timecode, s.cuesTrack, clusterPos)); err != nil {
					return err
				}
			}
		}

		s.clusters = append(s.clusters, cluster)
		s.newCluster = false
	}

	cluster := s.clusters[len(s.clusters)-1]

	blockTimecode := int64(timestamp/s.info.TimecodeScale) - int64(cluster.Timecode())
	if blockTimecode < 0 || blockTimecode > math.MaxInt16 {
		webm.Logger().Warnf(
			"Invalid block timecode (track:%d timestamp:%d cluster:%d diff:%d)",
			trackNumber, timestamp, cluster.Timecode(), blockTimecode,
		)
		return fmt.Errorf("block timecode %d out of range: %w", blockTimecode, webm.ErrInvalidArgument)
	}

	if err := cluster.AddFrame(frame, trackNumber, int16(blockTimecode), isKey); err != nil {
		return err
	}

	if timestamp > s.lastTimestamp {
		s.lastTimestamp = timestamp
	}
	return nil
}

// Finalize rewrites every deferred value: the open cluster's size, the
// duration, the Cues, the SeekHead, and the segment size. On a
// non-seekable sink the placeholders are left in place. Finalize is
// one-shot and must be the last call on the segment.
func (s *Segment) Finalize() error {
	if s.finalized {
		return webm.ErrFinalized
	}
	if !s.headerWritten {
		if err := s.writeSegmentHeader(false); err != nil {
			return err
		}
	}

	if s.w.Seekable() {
		if n := len(s.clusters); n > 0 {
			if err := s.clusters[n-1].Finalize(); err != nil {
				return err
			}
		}

		if s.info.durationPos >= 0 {
			s.info.Duration = float64(s.lastTimestamp) / float64(s.info.TimecodeScale)
			if err := s.info.finalize(s.w); err != nil {
				return err
			}
		}

		if s.outputCues && s.cues.Count() > 0 {
			if err := s.seekHead.AddEntry(webm.IDCues, uint64(s.w.Position()-s.payloadPos)); err != nil {
				return err
			}
			if err := s.cues.write(s.w); err != nil {
				return err
			}
		}

		if err := s.seekHead.finalize(s.w); err != nil {
			return err
		}

		segmentSize := uint64(s.w.Position() - s.payloadPos)
		if err := s.slot.commit(s.w, segmentSize); err != nil {
			return err
		}
	}

	s.finalized = true
	webm.Logger().Debugf("Finalized segment (clusters:%d cues:%d)", len(s.clusters), s.cues.Count())
	return nil
}

// writeSegmentHeader emits the EBML header, the Segment ID with its
// reserved size slot, the SeekHead reservation, SegmentInfo, and Tracks.
// allocDuration reserves the 4-byte duration field for the later rewrite;
// it is false when finalizing a segment that never saw a frame.
func (s *Segment) writeSegmentHeader(allocDuration bool) error {
	if s.tracks.Count() == 0 {
		return fmt.Errorf("no tracks: %w", webm.ErrInvalidArgument)
	}
	if err := WriteEBMLHeader(s.w); err != nil {
		return err
	}

	if err := writeID(s.w, webm.IDSegment); err != nil {
		return err
	}
	slot, err := reserveSize(s.w)
	if err != nil {
		return err
	}
	s.slot = slot
	s.payloadPos = s.w.Position()

	if allocDuration && s.w.Seekable() {
		// Claim the duration field's bytes now; the real value is
		// patched in on Finalize.
		s.info.Duration = 1.0
	}

	if err := s.seekHead.reserve(s.w); err != nil {
		return err
	}

	if err := s.seekHead.AddEntry(webm.IDInfo, uint64(s.w.Position()-s.payloadPos)); err != nil {
		return err
	}
	if err := s.info.write(s.w); err != nil {
		return err
	}

	if err := s.seekHead.AddEntry(webm.IDTracks, uint64(s.w.Position()-s.payloadPos)); err != nil {
		return err
	}
	if err := s.tracks.write(s.w); err != nil {
		return err
	}

	s.headerWritten = true
	return nil
}
