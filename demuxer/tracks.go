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
	"io"

	webm "github.com/Acidburn0zzz/webm.libwebm"
)

// maxClusterScan bounds the number of clusters a block iteration walks
// without finding a matching track, guarding against pathological
// streams.
const maxClusterScan = 100

// VideoSettings is the parsed Video element of a track entry.
type VideoSettings struct {
	Width     int64
	Height    int64
	FrameRate float64
}

// AudioSettings is the parsed Audio element of a track entry.
type AudioSettings struct {
	SamplingRate float64
	Channels     int64
	BitDepth     int64
}

// Track is one parsed TrackEntry. Exactly one of Video and Audio is set,
// matching the track type.
type Track struct {
	segment *Segment

	Number       int64
	UID          int64
	Type         int64
	Name         string
	CodecID      string
	CodecPrivate []byte
	CodecName    string

	Video *VideoSettings
	Audio *AudioSettings
}

// vetEntry reports whether a block entry is an acceptable seek target for
// the track: video tracks demand key frames.
func (t *Track) vetEntry(e *BlockEntry) bool {
	if t.Type == webm.TrackTypeVideo {
		return e.Block().IsKey()
	}
	return true
}

// First returns the track's first block entry, walking clusters as
// needed. It returns io.EOF once the stream holds no block for the track,
// or webm.ErrBufferNotFull if the caller should run ParseCluster and
// retry.
func (t *Track) First() (*BlockEntry, error) {
	s := t.segment

	cluster := s.First()
	for i := 0; i < maxClusterScan; i++ {
		if cluster == nil {
			if s.Unparsed() <= 0 {
				return nil, io.EOF
			}
			return nil, webm.ErrBufferNotFull
		}

		e, err := cluster.First()
		if err != nil {
			return nil, err
		}
		for e != nil {
			if e.Block().TrackNumber() == t.Number {
				return e, nil
			}
			e = cluster.Next(e)
		}

		cluster = s.Next(cluster)
	}

	return nil, io.EOF
}

// Next returns the entry after curr on the same track, crossing cluster
// boundaries. It returns io.EOF at the end of the stream, or
// webm.ErrBufferNotFull if more clusters must be parsed first.
func (t *Track) Next(curr *BlockEntry) (*BlockEntry, error) {
	if curr == nil {
		return nil, webm.ErrInvalidArgument
	}
	s := t.segment

	cluster := curr.Cluster()
	e := cluster.Next(curr)

	for i := 0; i < maxClusterScan; i++ {
		for e != nil {
			if e.Block().TrackNumber() == t.Number {
				return e, nil
			}
			e = cluster.Next(e)
		}

		cluster = s.Next(cluster)
		if cluster == nil {
			if s.Unparsed() <= 0 {
				return nil, io.EOF
			}
			return nil, webm.ErrBufferNotFull
		}

		var err error
		e, err = cluster.First()
		if err != nil {
			return nil, err
		}
	}

	return nil, io.EOF
}

// Tracks is the parsed Tracks element.
type Tracks struct {
	segment *Segment
	tracks  []*Track
}

func newTracks(s *Segment, start, size int64) (*Tracks, error) {
	ts := &Tracks{segment: s}
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
		if id == idTrackEntry {
			count++
		}
		pos += childSize
		if pos > stop {
			return nil, webm.ErrFormatInvalid
		}
	}

	ts.tracks = make([]*Track, 0, count)
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

		if id == idTrackEntry {
			t, err := ts.parseTrackEntry(pos, childSize)
			if err != nil {
				return nil, err
			}
			if t != nil {
				ts.tracks = append(ts.tracks, t)
			}
		}

		pos += childSize
	}
	return ts, nil
}

// parseTrackEntry decodes one TrackEntry. Track types outside the WebM
// subset yield nil and are skipped.
func (ts *Tracks) parseTrackEntry(start, size int64) (*Track, error) {
	r := ts.segment.r
	t := &Track{segment: ts.segment}

	var videoStart, videoSize int64 = -1, 0
	var audioStart, audioSize int64 = -1, 0

	pos := start
	stop := start + size
	for pos < stop {
		if v, ok, err := matchUInt(r, &pos, idTrackNumber); err != nil {
			return nil, err
		} else if ok {
			t.Number = v
		} else if v, ok, err := matchUInt(r, &pos, idTrackUID); err != nil {
			return nil, err
		} else if ok {
			t.UID = v
		} else if v, ok, err := matchUInt(r, &pos, idTrackType); err != nil {
			return nil, err
		} else if ok {
			t.Type = v
		} else if s, ok, err := matchString(r, &pos, idTrackName); err != nil {
			return nil, err
		} else if ok {
			t.Name = s
		} else if s, ok, err := matchString(r, &pos, idCodecID); err != nil {
			return nil, err
		} else if ok {
			t.CodecID = s
		} else if b, ok, err := matchBytes(r, &pos, idCodecPrivate); err != nil {
			return nil, err
		} else if ok {
			t.CodecPrivate = b
		} else if s, ok, err := matchString(r, &pos, idCodecName); err != nil {
			return nil, err
		} else if ok {
			t.CodecName = s
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
			case idVideo:
				videoStart, videoSize = pos, childSize
			case idAudio:
				audioStart, audioSize = pos, childSize
			}

			pos += childSize
			if pos > stop {
				return nil, webm.ErrFormatInvalid
			}
		}
	}

	if t.Number <= 0 {
		return nil, webm.ErrFormatInvalid
	}

	switch t.Type {
	case webm.TrackTypeVideo:
		if videoStart < 0 || audioStart >= 0 {
			return nil, webm.ErrFormatInvalid
		}
		v, err := parseVideoSettings(r, videoStart, videoSize)
		if err != nil {
			return nil, err
		}
		t.Video = v
	case webm.TrackTypeAudio:
		if audioStart < 0 || videoStart >= 0 {
			return nil, webm.ErrFormatInvalid
		}
		a, err := parseAudioSettings(r, audioStart, audioSize)
		if err != nil {
			return nil, err
		}
		t.Audio = a
	default:
		webm.Logger().Debugf("Skipping track %d of unsupported type %d", t.Number, t.Type)
		return nil, nil
	}

	return t, nil
}

func parseVideoSettings(r webm.Reader, start, size int64) (*VideoSettings, error) {
	v := &VideoSettings{Width: -1, Height: -1, FrameRate: -1}

	pos := start
	stop := start + size
	for pos < stop {
		if n, ok, err := matchUInt(r, &pos, idPixelWidth); err != nil {
			return nil, err
		} else if ok {
			v.Width = n
		} else if n, ok, err := matchUInt(r, &pos, idPixelHeight); err != nil {
			return nil, err
		} else if ok {
			v.Height = n
		} else if f, ok, err := matchFloat(r, &pos, idFrameRate); err != nil {
			return nil, err
		} else if ok {
			v.FrameRate = f
		} else if err := skipElement(r, &pos); err != nil {
			return nil, err
		}
		if pos > stop {
			return nil, webm.ErrFormatInvalid
		}
	}
	return v, nil
}

func parseAudioSettings(r webm.Reader, start, size int64) (*AudioSettings, error) {
	a := &AudioSettings{BitDepth: -1}

	pos := start
	stop := start + size
	for pos < stop {
		if f, ok, err := matchFloat(r, &pos, idSamplingFrequency); err != nil {
			return nil, err
		} else if ok {
			a.SamplingRate = f
		} else if n, ok, err := matchUInt(r, &pos, idChannels); err != nil {
			return nil, err
		} else if ok {
			a.Channels = n
		} else if n, ok, err := matchUInt(r, &pos, idBitDepth); err != nil {
			return nil, err
		} else if ok {
			a.BitDepth = n
		} else if err := skipElement(r, &pos); err != nil {
			return nil, err
		}
		if pos > stop {
			return nil, webm.ErrFormatInvalid
		}
	}
	return a, nil
}

// Count returns the number of parsed tracks.
func (ts *Tracks) Count() int {
	return len(ts.tracks)
}

// ByNumber returns the track with the given number, or nil.
func (ts *Tracks) ByNumber(n int64) *Track {
	for _, t := range ts.tracks {
		if t.Number == n {
			return t
		}
	}
	return nil
}

// ByIndex returns the track at idx, or nil.
func (ts *Tracks) ByIndex(idx int) *Track {
	if idx < 0 || idx >= len(ts.tracks) {
		return nil
	}
	return ts.tracks[idx]
}
