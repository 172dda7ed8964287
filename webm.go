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

// Package webm provides shared definitions for reading and writing WebM
// container files: element IDs, track types, and the byte sink/source
// interfaces used by the muxer and demuxer subpackages.
package webm

// Element IDs of the WebM subset of Matroska, as they appear on the wire
// (class bits included).
const (
	IDEBML               = 0x1A45DFA3
	IDEBMLVersion        = 0x4286
	IDEBMLReadVersion    = 0x42F7
	IDEBMLMaxIDLength    = 0x42F2
	IDEBMLMaxSizeLength  = 0x42F3
	IDDocType            = 0x4282
	IDDocTypeVersion     = 0x4287
	IDDocTypeReadVersion = 0x4285

	IDVoid = 0xEC

	IDSegment = 0x18538067

	IDSeekHead     = 0x114D9B74
	IDSeek         = 0x4DBB
	IDSeekID       = 0x53AB
	IDSeekPosition = 0x53AC

	IDInfo          = 0x1549A966
	IDTimecodeScale = 0x2AD7B1
	IDDuration      = 0x4489
	IDTitle         = 0x7BA9
	IDMuxingApp     = 0x4D80
	IDWritingApp    = 0x5741

	IDTracks       = 0x1654AE6B
	IDTrackEntry   = 0xAE
	IDTrackNumber  = 0xD7
	IDTrackUID     = 0x73C5
	IDTrackType    = 0x83
	IDTrackName    = 0x536E
	IDCodecID      = 0x86
	IDCodecPrivate = 0x63A2
	IDCodecName    = 0x258688

	IDVideo       = 0xE0
	IDPixelWidth  = 0xB0
	IDPixelHeight = 0xBA
	IDFrameRate   = 0x2383E3

	IDAudio             = 0xE1
	IDSamplingFrequency = 0xB5
	IDChannels          = 0x9F
	IDBitDepth          = 0x6264

	IDCluster        = 0x1F43B675
	IDTimecode       = 0xE7
	IDSimpleBlock    = 0xA3
	IDBlockGroup     = 0xA0
	IDBlock          = 0xA1
	IDReferenceBlock = 0xFB

	IDCues               = 0x1C53BB6B
	IDCuePoint           = 0xBB
	IDCueTime            = 0xB3
	IDCueTrackPositions  = 0xB7
	IDCueTrack           = 0xF7
	IDCueClusterPosition = 0xF1
	IDCueBlockNumber     = 0x5378
)

// Track types of the WebM subset.
const (
	TrackTypeVideo = 1
	TrackTypeAudio = 2
)

// Codec IDs of the WebM subset.
const (
	CodecVP8    = "V_VP8"
	CodecVorbis = "A_VORBIS"
)

// DefaultTimecodeScale is the number of nanoseconds per timecode tick
// unless SegmentInfo overrides it.
const DefaultTimecodeScale = 1000000

// DocTypeWebM is the EBML DocType written and accepted by this module.
const DocTypeWebM = "webm"
