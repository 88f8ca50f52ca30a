// Copyright (c) 2025 The RetroForge Authors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of romident.
//
// romident is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// romident is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with romident.  If not, see <https://www.gnu.org/licenses/>.

package chd

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

// CHD FLAC streams are headerless: MAME strips the fLaC marker and
// STREAMINFO block. A synthetic header with the known CD parameters is
// prepended so the decoder can parse the frames.

// flacHeaderTemplate is a minimal fLaC header with one STREAMINFO block;
// block size and stream parameters are patched in.
var flacHeaderTemplate = []byte{
	0x66, 0x4C, 0x61, 0x43, // "fLaC"
	0x80, 0x00, 0x00, 0x22, // STREAMINFO, last block, length 34
	0x00, 0x00, // min block size (patched)
	0x00, 0x00, // max block size (patched)
	0x00, 0x00, 0x00, // min frame size
	0x00, 0x00, 0x00, // max frame size
	0x0A, 0xC4, 0x42, 0xF0, // rate/channels/bits (patched)
	0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// flacBlockSize mirrors the reference encoder's choice: totalBytes/4 halved
// until it fits a raw sector.
func flacBlockSize(totalBytes int) uint16 {
	blockSize := totalBytes / 4
	for blockSize > cdSectorBytes {
		blockSize /= 2
	}
	return uint16(blockSize)
}

// buildFLACHeader synthesizes the stripped stream header for 16-bit CD
// audio with the given block size.
func buildFLACHeader(sampleRate uint32, channels uint8, blockSize uint16) []byte {
	header := make([]byte, len(flacHeaderTemplate))
	copy(header, flacHeaderTemplate)
	header[0x08] = byte(blockSize >> 8)
	header[0x09] = byte(blockSize)
	header[0x0A] = byte(blockSize >> 8)
	header[0x0B] = byte(blockSize)
	v := sampleRate<<4 | uint32(channels-1)<<1
	header[0x12] = byte(v >> 16)
	header[0x13] = byte(v >> 8)
	header[0x14] = byte(v)
	return header
}

// headerPrefixReader serves a synthetic header before the real stream and
// counts how many stream bytes the decoder consumed, which locates the
// subchannel data that follows the FLAC frames.
type headerPrefixReader struct {
	header    []byte
	data      []byte
	headerPos int
	dataPos   int
}

func (hr *headerPrefixReader) Read(p []byte) (int, error) {
	total := 0
	if hr.headerPos < len(hr.header) {
		n := copy(p, hr.header[hr.headerPos:])
		hr.headerPos += n
		total += n
		p = p[n:]
	}
	if len(p) > 0 && hr.dataPos < len(hr.data) {
		n := copy(p, hr.data[hr.dataPos:])
		hr.dataPos += n
		total += n
	}
	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}

// deflac decodes a plain FLAC hunk into 16-bit big-endian samples.
func deflac(dst, src []byte) (int, error) {
	hr := &headerPrefixReader{
		header: buildFLACHeader(44100, 2, flacBlockSize(len(dst))),
		data:   src,
	}
	stream, err := flac.New(hr)
	if err != nil {
		return 0, fmt.Errorf("%w: flac init: %w", ErrDecompress, err)
	}
	defer func() { _ = stream.Close() }()
	n, err := decodeFLACFrames(stream, dst)
	if err != nil {
		return n, err
	}
	return n, nil
}

// decodeFLACFrames writes decoded samples until the stream ends or dst is
// full.
func decodeFLACFrames(stream *flac.Stream, dst []byte) (int, error) {
	offset := 0
	for {
		audioFrame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return offset, nil
			}
			return offset, fmt.Errorf("%w: flac frame: %w", ErrDecompress, err)
		}
		offset = writeFrameSamples(audioFrame, dst, offset)
	}
}

// writeFrameSamples interleaves up to two channels as big-endian 16-bit.
func writeFrameSamples(audioFrame *frame.Frame, dst []byte, offset int) int {
	if len(audioFrame.Subframes) == 0 {
		return offset
	}
	channels := len(audioFrame.Subframes)
	if channels > 2 {
		channels = 2
	}
	for i := 0; i < int(audioFrame.Subframes[0].NSamples); i++ {
		for ch := 0; ch < channels; ch++ {
			sample := audioFrame.Subframes[ch].Samples[i]
			if offset+2 <= len(dst) {
				dst[offset] = byte(sample >> 8)
				dst[offset+1] = byte(sample)
				offset += 2
			}
		}
	}
	return offset
}

// cdFLACCodec handles "cdfl" hunks: FLAC audio frames immediately followed
// by deflate-compressed subchannel data, with no length prefix. The FLAC
// decoder itself determines where the audio stream ends.
type cdFLACCodec struct{}

func (*cdFLACCodec) decompress(dst, src []byte, frames int) (int, error) {
	if len(src) == 0 {
		return 0, fmt.Errorf("%w: cdfl: empty source", ErrDecompress)
	}

	totalSectorBytes := frames * cdSectorBytes
	sectorDst := make([]byte, totalSectorBytes)

	hr := &headerPrefixReader{
		header: buildFLACHeader(44100, 2, flacBlockSize(totalSectorBytes)),
		data:   src,
	}
	consumed := len(src)
	if stream, err := flac.New(hr); err == nil {
		if _, err := decodeFLACFrames(stream, sectorDst); err == nil {
			consumed = hr.dataPos
		} else {
			// Undecodable audio is tolerated: identification only needs
			// data tracks, so the frame bytes stay zero.
			sectorDst = make([]byte, totalSectorBytes)
		}
		_ = stream.Close()
	}

	var subDst []byte
	if consumed < len(src) {
		subDst = inflateSubchannel(src[consumed:], frames*cdSubBytes)
	} else {
		subDst = make([]byte, frames*cdSubBytes)
	}

	return interleaveCD(dst, sectorDst, subDst, nil, frames), nil
}
