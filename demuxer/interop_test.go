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

package demuxer_test

import (
	"bytes"
	"testing"

	"github.com/at-wat/ebml-go"
	"github.com/google/go-cmp/cmp"

	webm "github.com/Acidburn0zzz/webm.libwebm"
)

type interopHeader struct {
	EBMLVersion            uint64
	EBMLReadVersion        uint64
	EBMLMaxIDLength        uint64
	EBMLMaxSizeLength      uint64
	EBMLDocType            string
	EBMLDocTypeVersion     uint64
	EBMLDocTypeReadVersion uint64
}

type interopInfo struct {
	TimecodeScale uint64
	Duration      float64 `ebml:",omitempty"`
	MuxingApp     string
	WritingApp    string
}

type interopVideo struct {
	PixelWidth  uint64
	PixelHeight uint64
}

type interopAudio struct {
	SamplingFrequency float64
	Channels          uint64
}

type interopTrackEntry struct {
	TrackNumber uint64
	TrackUID    uint64
	TrackType   uint64
	CodecID     string
	Video       *interopVideo `ebml:",omitempty"`
	Audio       *interopAudio `ebml:",omitempty"`
}

type interopTracks struct {
	TrackEntry []interopTrackEntry
}

type interopCluster struct {
	Timecode    uint64
	SimpleBlock []ebml.Block
}

type interopSegment struct {
	Info    interopInfo
	Tracks  interopTracks
	Cluster []interopCluster
}

type interopContainer struct {
	Header  interopHeader  `ebml:"EBML"`
	Segment interopSegment `ebml:"Segment"`
}

// TestInteropUnmarshal feeds this muxer's output through ebml-go's
// reflection-based decoder as an independent check of the emitted
// structure.
func TestInteropUnmarshal(t *testing.T) {
	frames := []testFrame{
		{[]byte{0x01, 0x02, 0x03}, 1, 0, true},
		{[]byte{0x04, 0x05}, 2, 0, true},
		{[]byte{0x06, 0x07}, 2, 20000000, true},
		{[]byte{0x08, 0x09, 0x0A}, 1, 40000000, true},
	}
	data := muxFrames(t, true, frames)

	var c interopContainer
	if err := ebml.Unmarshal(bytes.NewReader(data), &c); err != nil {
		t.Fatalf("Failed to unmarshal with ebml-go: %v", err)
	}

	expectedHeader := interopHeader{
		EBMLVersion:            1,
		EBMLReadVersion:        1,
		EBMLMaxIDLength:        4,
		EBMLMaxSizeLength:      8,
		EBMLDocType:            "webm",
		EBMLDocTypeVersion:     2,
		EBMLDocTypeReadVersion: 2,
	}
	if diff := cmp.Diff(expectedHeader, c.Header); diff != "" {
		t.Errorf("Unexpected EBML header (-want +got):\n%s", diff)
	}

	info := c.Segment.Info
	if info.TimecodeScale != 1000000 {
		t.Errorf("Expected default timecode scale, got %d", info.TimecodeScale)
	}
	if info.Duration != 40 {
		t.Errorf("Expected 40-tick duration, got %v", info.Duration)
	}

	tracks := c.Segment.Tracks.TrackEntry
	if len(tracks) != 2 {
		t.Fatalf("Expected 2 track entries, got %d", len(tracks))
	}
	if tracks[0].TrackNumber != 1 || tracks[0].TrackType != webm.TrackTypeVideo ||
		tracks[0].CodecID != webm.CodecVP8 {
		t.Errorf("Unexpected video track entry: %+v", tracks[0])
	}
	if tracks[0].Video == nil || tracks[0].Video.PixelWidth != 640 || tracks[0].Video.PixelHeight != 480 {
		t.Errorf("Unexpected video settings: %+v", tracks[0].Video)
	}
	if tracks[1].TrackNumber != 2 || tracks[1].TrackType != webm.TrackTypeAudio ||
		tracks[1].CodecID != webm.CodecVorbis {
		t.Errorf("Unexpected audio track entry: %+v", tracks[1])
	}
	if tracks[1].Audio == nil || tracks[1].Audio.SamplingFrequency != 48000 || tracks[1].Audio.Channels != 2 {
		t.Errorf("Unexpected audio settings: %+v", tracks[1].Audio)
	}

	clusters := c.Segment.Cluster
	if len(clusters) != 2 {
		t.Fatalf("Expected 2 clusters, got %d", len(clusters))
	}
	if clusters[0].Timecode != 0 || clusters[1].Timecode != 40 {
		t.Errorf("Unexpected cluster timecodes: %d, %d", clusters[0].Timecode, clusters[1].Timecode)
	}
	if len(clusters[0].SimpleBlock) != 3 || len(clusters[1].SimpleBlock) != 1 {
		t.Fatalf("Unexpected block counts: %d, %d", len(clusters[0].SimpleBlock), len(clusters[1].SimpleBlock))
	}
	b := clusters[0].SimpleBlock[0]
	if b.TrackNumber != 1 || b.Timecode != 0 || !b.Keyframe {
		t.Errorf("Unexpected first block: %+v", b)
	}
	if diff := cmp.Diff([][]byte{{0x01, 0x02, 0x03}}, b.Data); diff != "" {
		t.Errorf("Unexpected first block payload (-want +got):\n%s", diff)
	}
	if tc := clusters[0].SimpleBlock[2].Timecode; tc != 20 {
		t.Errorf("Expected relative timecode 20, got %d", tc)
	}
}

// TestInteropParse parses a WebM document authored entirely by ebml-go
// with this demuxer.
func TestInteropParse(t *testing.T) {
	doc := interopContainer{
		Header: interopHeader{
			EBMLVersion:            1,
			EBMLReadVersion:        1,
			EBMLMaxIDLength:        4,
			EBMLMaxSizeLength:      8,
			EBMLDocType:            "webm",
			EBMLDocTypeVersion:     2,
			EBMLDocTypeReadVersion: 2,
		},
		Segment: interopSegment{
			Info: interopInfo{
				TimecodeScale: 1000000,
				MuxingApp:     "ebml-go",
				WritingApp:    "ebml-go",
			},
			Tracks: interopTracks{
				TrackEntry: []interopTrackEntry{{
					TrackNumber: 1,
					TrackUID:    2,
					TrackType:   webm.TrackTypeVideo,
					CodecID:     webm.CodecVP8,
					Video:       &interopVideo{PixelWidth: 320, PixelHeight: 240},
				}},
			},
			Cluster: []interopCluster{
				{
					Timecode: 0,
					SimpleBlock: []ebml.Block{{
						TrackNumber: 1, Timecode: 0, Keyframe: true,
						Data: [][]byte{{0x01, 0x02, 0x03}},
					}},
				},
				{
					Timecode: 100,
					SimpleBlock: []ebml.Block{{
						TrackNumber: 1, Timecode: 0, Keyframe: true,
						Data: [][]byte{{0x04, 0x05, 0x06}},
					}},
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := ebml.Marshal(&doc, &buf); err != nil {
		t.Fatalf("Failed to marshal with ebml-go: %v", err)
	}

	seg, r := parseAll(t, buf.Bytes())
	if err := seg.Load(); err != nil {
		t.Fatalf("Failed to load ebml-go document: %v", err)
	}

	track := seg.Tracks().ByNumber(1)
	if track == nil {
		t.Fatal("Track 1 not found")
	}
	if track.Video == nil || track.Video.Width != 320 || track.Video.Height != 240 {
		t.Errorf("Unexpected video settings: %+v", track.Video)
	}

	got := collectTrack(t, seg, r, 1)
	expected := []testFrame{
		{[]byte{0x01, 0x02, 0x03}, 1, 0, true},
		{[]byte{0x04, 0x05, 0x06}, 1, 100000000, true},
	}
	if diff := cmp.Diff(expected, got, cmp.AllowUnexported(testFrame{})); diff != "" {
		t.Errorf("Round trip through ebml-go mismatch (-want +got):\n%s", diff)
	}
}
