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
	"bytes"
	"compress/flate"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz/lzma"
)

// Codec tags: four ASCII characters packed big-endian. The cd* variants
// compress sector data with the base codec and subchannel data with deflate.
const (
	tagZlib   uint32 = 0x7A6C6962 // "zlib"
	tagLZMA   uint32 = 0x6C7A6D61 // "lzma"
	tagFLAC   uint32 = 0x666C6163 // "flac"
	tagZstd   uint32 = 0x7A737464 // "zstd"
	tagCDZlib uint32 = 0x63647A6C // "cdzl"
	tagCDLZMA uint32 = 0x63646C7A // "cdlz"
	tagCDFLAC uint32 = 0x6364666C // "cdfl"
	tagCDZstd uint32 = 0x63647A73 // "cdzs"
)

const (
	cdSectorBytes = 2352
	cdSubBytes    = 96
)

// cdSyncHeader opens every raw CD sector.
var cdSyncHeader = [12]byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

// codec decompresses one hunk. frames is the CD frame count of the hunk,
// used by the cd* variants; plain codecs ignore it.
type codec interface {
	decompress(dst, src []byte, frames int) (int, error)
}

// tagName renders a codec tag as its ASCII form.
func tagName(tag uint32) string {
	return string([]byte{byte(tag >> 24), byte(tag >> 16), byte(tag >> 8), byte(tag)})
}

// newCodec instantiates the codec for a header tag.
func newCodec(tag, hunkBytes uint32) (codec, error) {
	switch tag {
	case tagZlib:
		return plainCodec{inflate}, nil
	case tagLZMA:
		return &lzmaCodec{hunkBytes: hunkBytes}, nil
	case tagZstd:
		return plainCodec{unzstd}, nil
	case tagFLAC:
		return plainCodec{deflac}, nil
	case tagCDZlib:
		return &cdCodec{base: inflate}, nil
	case tagCDLZMA:
		lc := &lzmaCodec{}
		return &cdCodec{base: func(dst, src []byte) (int, error) {
			lc.hunkBytes = uint32(len(dst))
			return lc.inflateRaw(dst, src)
		}}, nil
	case tagCDZstd:
		return &cdCodec{base: unzstd}, nil
	case tagCDFLAC:
		return &cdFLACCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, tagName(tag))
	}
}

// plainCodec adapts a (dst, src) decompression function.
type plainCodec struct {
	fn func(dst, src []byte) (int, error)
}

func (p plainCodec) decompress(dst, src []byte, _ int) (int, error) {
	return p.fn(dst, src)
}

// inflate decompresses a raw deflate stream; CHD "zlib" hunks carry raw
// deflate (RFC 1951) without the zlib wrapper.
func inflate(dst, src []byte) (int, error) {
	fr := flate.NewReader(bytes.NewReader(src))
	defer func() { _ = fr.Close() }()
	n, err := io.ReadFull(fr, dst)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n, fmt.Errorf("%w: deflate: %w", ErrDecompress, err)
	}
	return n, nil
}

// unzstd decompresses a Zstandard frame.
func unzstd(dst, src []byte) (int, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return 0, fmt.Errorf("%w: zstd init: %w", ErrDecompress, err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(src, dst[:0])
	if err != nil {
		return 0, fmt.Errorf("%w: zstd: %w", ErrDecompress, err)
	}
	return copy(dst, out), nil
}

// lzmaCodec decompresses CHD LZMA hunks. The stream is headerless raw LZMA;
// the properties MAME encodes with (lc=3 lp=0 pb=2, dictionary sized from
// the hunk) are reconstructed into a synthetic header for the decoder.
type lzmaCodec struct {
	hunkBytes uint32
}

// lzmaDictSize mirrors LzmaEncProps_Normalize for level 8 with reduceSize
// set to the hunk size: the smallest 2<<i or 3<<i that covers it.
func lzmaDictSize(hunkBytes uint32) uint32 {
	for i := uint32(11); i <= 30; i++ {
		if hunkBytes <= 2<<i {
			return 2 << i
		}
		if hunkBytes <= 3<<i {
			return 3 << i
		}
	}
	return 1 << 26
}

func (c *lzmaCodec) decompress(dst, src []byte, _ int) (int, error) {
	return c.inflateRaw(dst, src)
}

func (c *lzmaCodec) inflateRaw(dst, src []byte) (int, error) {
	if len(src) == 0 {
		return 0, fmt.Errorf("%w: lzma: empty source", ErrDecompress)
	}
	hunkBytes := c.hunkBytes
	if hunkBytes == 0 {
		hunkBytes = uint32(len(dst))
	}

	// 13-byte LZMA header: props byte 0x5D (lc=3 lp=0 pb=2), dictionary
	// size, uncompressed size.
	header := make([]byte, 13)
	header[0] = 0x5D
	binary.LittleEndian.PutUint32(header[1:5], lzmaDictSize(hunkBytes))
	binary.LittleEndian.PutUint64(header[5:13], uint64(len(dst)))

	stream := make([]byte, 0, len(header)+len(src))
	stream = append(stream, header...)
	stream = append(stream, src...)

	lr, err := lzma.NewReader(bytes.NewReader(stream))
	if err != nil {
		return 0, fmt.Errorf("%w: lzma init: %w", ErrDecompress, err)
	}
	n, err := io.ReadFull(lr, dst)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n, fmt.Errorf("%w: lzma: %w", ErrDecompress, err)
	}
	return n, nil
}

// cdCodec is the shared CD hunk layout: an ECC bitmap, a compressed-length
// field, base-compressed sector data, then deflate-compressed subchannel
// data, re-interleaved into 2448-byte units.
type cdCodec struct {
	base func(dst, src []byte) (int, error)
}

func (c *cdCodec) decompress(dst, src []byte, frames int) (int, error) {
	sectorData, subData, eccBitmap, err := splitCDHunk(src, len(dst), frames)
	if err != nil {
		return 0, err
	}

	sectorDst := make([]byte, frames*cdSectorBytes)
	if _, err := c.base(sectorDst, sectorData); err != nil {
		return 0, err
	}

	subDst := inflateSubchannel(subData, frames*cdSubBytes)

	return interleaveCD(dst, sectorDst, subDst, eccBitmap, frames), nil
}

// splitCDHunk separates a cd* hunk into its base and subchannel streams.
func splitCDHunk(src []byte, destLen, frames int) (sector, sub, ecc []byte, err error) {
	compLenBytes := 2
	if destLen >= 65536 {
		compLenBytes = 3
	}
	eccBytes := (frames + 7) / 8
	headerBytes := eccBytes + compLenBytes
	if len(src) < headerBytes {
		return nil, nil, nil, fmt.Errorf("%w: cd hunk header truncated", ErrDecompress)
	}

	var baseLen int
	if compLenBytes == 3 {
		baseLen = int(src[eccBytes])<<16 | int(src[eccBytes+1])<<8 | int(src[eccBytes+2])
	} else {
		baseLen = int(binary.BigEndian.Uint16(src[eccBytes : eccBytes+2]))
	}
	if headerBytes+baseLen > len(src) {
		return nil, nil, nil, fmt.Errorf("%w: cd hunk base length %d", ErrDecompress, baseLen)
	}

	return src[headerBytes : headerBytes+baseLen], src[headerBytes+baseLen:], src[:eccBytes], nil
}

// inflateSubchannel decompresses the subchannel stream, tolerating failure:
// identification never consumes subchannel bytes.
func inflateSubchannel(subData []byte, totalBytes int) []byte {
	dst := make([]byte, totalBytes)
	if len(subData) == 0 || totalBytes == 0 {
		return dst
	}
	if _, err := inflate(dst, subData); err != nil {
		return make([]byte, totalBytes)
	}
	return dst
}

// interleaveCD reassembles sector + subchannel frames into the hunk layout,
// restoring the sync header for frames whose ECC was stripped.
func interleaveCD(dst, sectorDst, subDst []byte, eccBitmap []byte, frames int) int {
	offset := 0
	for i := 0; i < frames; i++ {
		sectorOff := i * cdSectorBytes
		if sectorOff+cdSectorBytes <= len(sectorDst) {
			copy(dst[offset:], sectorDst[sectorOff:sectorOff+cdSectorBytes])
		}
		if i/8 < len(eccBitmap) && eccBitmap[i/8]&(1<<(i%8)) != 0 {
			copy(dst[offset:], cdSyncHeader[:])
		}
		offset += cdSectorBytes

		subOff := i * cdSubBytes
		if subOff+cdSubBytes <= len(subDst) {
			copy(dst[offset:], subDst[subOff:subOff+cdSubBytes])
		}
		offset += cdSubBytes
	}
	return offset
}
