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

package analyzer

import (
	"fmt"
	"hash/crc32"
	"io"
	"math/bits"

	"github.com/retroforge/romident/internal/binary"
)

// N64 ROM layout.
const (
	n64HeaderSize   = 0x40
	n64BootStart    = 0x40
	n64BootEnd      = 0x1000
	n64CRCStart     = 0x1000
	n64CRCEnd       = 0x101000
	n64MinCRCSize   = n64CRCEnd
	n64TitleOffset  = 0x20
	n64TitleLen     = 20
)

// N64ByteOrder is one of the three dump byte orderings.
type N64ByteOrder int

// Byte orderings, identified by the first four bytes of the dump.
const (
	// N64OrderZ64 is native big-endian (80 37 12 40).
	N64OrderZ64 N64ByteOrder = iota
	// N64OrderV64 is byte-swapped: every 2 bytes exchanged (37 80 40 12).
	N64OrderV64
	// N64OrderN64 is little-endian: every 4 bytes reversed (40 12 37 80).
	N64OrderN64
)

// String returns the conventional extension name of the ordering.
func (o N64ByteOrder) String() string {
	switch o {
	case N64OrderV64:
		return "v64"
	case N64OrderN64:
		return "n64"
	default:
		return "z64"
	}
}

// DetectN64ByteOrder identifies the dump ordering from the first four bytes.
func DetectN64ByteOrder(magic []byte) (N64ByteOrder, bool) {
	if len(magic) < 4 {
		return 0, false
	}
	switch {
	case magic[0] == 0x80 && magic[1] == 0x37 && magic[2] == 0x12 && magic[3] == 0x40:
		return N64OrderZ64, true
	case magic[0] == 0x37 && magic[1] == 0x80 && magic[2] == 0x40 && magic[3] == 0x12:
		return N64OrderV64, true
	case magic[0] == 0x40 && magic[1] == 0x12 && magic[2] == 0x37 && magic[3] == 0x80:
		return N64OrderN64, true
	default:
		return 0, false
	}
}

// NormalizeN64 rewrites buf in place from the given ordering to big-endian.
// buf length must be a multiple of 4 for the little-endian case; hashing
// always feeds 4-byte-aligned chunks.
func NormalizeN64(buf []byte, order N64ByteOrder) {
	switch order {
	case N64OrderV64:
		for i := 0; i+1 < len(buf); i += 2 {
			buf[i], buf[i+1] = buf[i+1], buf[i]
		}
	case N64OrderN64:
		for i := 0; i+3 < len(buf); i += 4 {
			buf[i], buf[i+3] = buf[i+3], buf[i]
			buf[i+1], buf[i+2] = buf[i+2], buf[i+1]
		}
	case N64OrderZ64:
	}
}

// n64CIC is a boot-lockout chip variant. The variant decides the checksum
// seed and, for 6103/6105/6106, the algorithm details.
type n64CIC int

const (
	n64CICUnknown n64CIC = iota
	n64CIC6101
	n64CIC6102
	n64CIC6103
	n64CIC6105
	n64CIC6106
)

func (c n64CIC) name() string {
	switch c {
	case n64CIC6101:
		return "6101"
	case n64CIC6102:
		return "6102"
	case n64CIC6103:
		return "6103"
	case n64CIC6105:
		return "6105"
	case n64CIC6106:
		return "6106"
	default:
		return "unknown"
	}
}

func (c n64CIC) seed() uint32 {
	switch c {
	case n64CIC6103:
		return 0xA3886759
	case n64CIC6105:
		return 0xDF26F436
	case n64CIC6106:
		return 0x1FEA617A
	default:
		return 0xF8CA4DDC // 6101/6102 and the fallback
	}
}

// detectN64CIC identifies the CIC variant from the CRC32 of the IPL3 boot
// code (big-endian bytes 0x40-0x1000).
func detectN64CIC(bootCode []byte) n64CIC {
	switch crc32.ChecksumIEEE(bootCode) {
	case 0x6170A4A1:
		return n64CIC6101
	case 0x90BB6CB5:
		return n64CIC6102
	case 0x0B050EE0:
		return n64CIC6103
	case 0x98BC2C86:
		return n64CIC6105
	case 0xACC8580A:
		return n64CIC6106
	default:
		return n64CICUnknown
	}
}

// n64DestinationRegions maps the destination code to a region.
var n64DestinationRegions = map[byte]Region{
	'E': RegionUSA, 'N': RegionUSA,
	'J': RegionJapan,
	'P': RegionEurope, 'D': RegionEurope, 'F': RegionEurope, 'S': RegionEurope,
	'I': RegionEurope, 'H': RegionEurope, 'W': RegionEurope, 'X': RegionEurope,
	'Y': RegionEurope, 'L': RegionEurope,
	'U': RegionAustralia,
	'A': RegionWorld,
	'B': RegionBrazil,
	'K': RegionKorea,
	'C': RegionChina,
}

// n64SerialSuffix is the region suffix used in full NUS serials.
func n64SerialSuffix(region Region) string {
	switch region {
	case RegionUSA:
		return "USA"
	case RegionJapan:
		return "JPN"
	case RegionEurope:
		return "EUR"
	case RegionAustralia:
		return "AUS"
	case RegionWorld:
		return "ALL"
	case RegionBrazil:
		return "BRA"
	case RegionKorea:
		return "KOR"
	case RegionChina:
		return "CHN"
	default:
		return "UNK"
	}
}

// N64Analyzer parses Nintendo 64 ROMs in all three byte orderings.
type N64Analyzer struct {
	PlatformInfo
	DATInfo
}

// NewN64Analyzer creates the N64 analyzer.
func NewN64Analyzer() *N64Analyzer {
	return &N64Analyzer{
		PlatformInfo: PlatformInfo{
			Name:       "Nintendo 64",
			Short:      "n64",
			Maker:      "Nintendo",
			Folders:    []string{"n64", "nintendo 64", "nintendo64"},
			Extensions: []string{"z64", "v64", "n64"},
		},
		DATInfo: DATInfo{
			Source: DATSourceNoIntro,
			Names:  []string{"Nintendo - Nintendo 64"},
		},
	}
}

// CanHandle accepts any of the three byte-order magics.
func (*N64Analyzer) CanHandle(r io.ReadSeeker) bool {
	magic, ok := peekMagic(r, 0, 4)
	if !ok {
		return false
	}
	_, ok = DetectN64ByteOrder(magic)
	return ok
}

// Analyze parses the N64 header and, unless quick mode is set, recomputes the
// CIC checksum pair over the 1 MiB body region.
func (a *N64Analyzer) Analyze(r io.ReadSeeker, opts *Options) (*Identification, error) {
	size, err := FileSize(r)
	if err != nil {
		return nil, err
	}
	if size < n64BootEnd {
		return nil, TooSmallError(n64BootEnd, size)
	}

	// Header plus IPL3 boot code, normalized to big-endian before any field
	// is interpreted.
	buf := make([]byte, n64BootEnd)
	if err := ReadExactOrTooSmall(r, buf); err != nil {
		return nil, err
	}
	order, ok := DetectN64ByteOrder(buf[:4])
	if !ok {
		return nil, InvalidFormatError("unrecognized N64 magic: % 02X", buf[:4])
	}
	NormalizeN64(buf, order)

	cic := detectN64CIC(buf[n64BootStart:n64BootEnd])

	id := NewIdentification("Nintendo 64")
	id.FileSize = size
	id.InternalName = PrintableASCII(buf[n64TitleOffset : n64TitleOffset+n64TitleLen])
	id.SetExtra("endianness", order.String())
	id.SetExtra("format", fmt.Sprintf("%s ROM", order))
	id.SetExtra("cic", cic.name())
	id.SetExtra("boot_address", fmt.Sprintf("0x%08X", binary.U32BE(buf, 0x08)))
	id.SetExtra("clock_rate", fmt.Sprintf("0x%08X", binary.U32BE(buf, 0x04)))
	id.Version = fmt.Sprintf("v1.%d", buf[0x3F])

	category := buf[0x3B]
	gameID := buf[0x3C:0x3E]
	destination := buf[0x3E]

	region, known := n64DestinationRegions[destination]
	if known {
		id.AddRegion(region)
	}

	if isPrintable(category) && isPrintable(gameID[0]) && isPrintable(gameID[1]) {
		id.SetExtra("category_code", string(category))
		id.SerialNumber = fmt.Sprintf("NUS-%c%c%c%c-%s",
			category, gameID[0], gameID[1], destination, n64SerialSuffix(region))
	}

	headerCRC1 := binary.U32BE(buf, 0x10)
	headerCRC2 := binary.U32BE(buf, 0x14)
	id.SetExtra("header_crc", fmt.Sprintf("%08X %08X", headerCRC1, headerCRC2))

	if opts.Quick || size < n64MinCRCSize {
		id.SetChecksumStatus("N64 CRC", ChecksumUnknown)
		return id, nil
	}

	crc1, crc2, err := n64ComputeCRC(r, order, cic, buf[n64BootStart:n64BootEnd])
	if err != nil {
		return nil, err
	}
	if crc1 == headerCRC1 && crc2 == headerCRC2 {
		id.SetChecksumStatus("N64 CRC", ChecksumValid)
	} else {
		id.SetChecksumStatus("N64 CRC", ChecksumInvalid)
	}

	return id, nil
}

// AnalyzeWithProgress delegates to Analyze; the CRC region is a fixed 1 MiB.
func (a *N64Analyzer) AnalyzeWithProgress(r io.ReadSeeker, opts *Options, _ ProgressFunc) (*Identification, error) {
	return a.Analyze(r, opts)
}

func isPrintable(b byte) bool { return b >= 0x20 && b < 0x7F }

// n64ComputeCRC reproduces the boot-time checksum over 0x1000-0x101000 using
// the algorithm variant selected by the CIC. bootCode must already be
// big-endian; CIC-6105 folds boot-code words into the running state.
func n64ComputeCRC(r io.ReadSeeker, order N64ByteOrder, cic n64CIC, bootCode []byte) (uint32, uint32, error) {
	data := make([]byte, n64CRCEnd-n64CRCStart)
	if err := ReadAtOrTooSmall(r, n64CRCStart, data); err != nil {
		return 0, 0, err
	}
	NormalizeN64(data, order)

	seed := cic.seed()
	t1, t2, t3, t4, t5, t6 := seed, seed, seed, seed, seed, seed

	for i := 0; i < len(data); i += 4 {
		d := binary.U32BE(data, i)

		if k := t6 + d; k < t6 {
			t4++
		}
		t6 += d

		t3 ^= d

		rolled := bits.RotateLeft32(d, int(d&0x1F))
		t5 += rolled

		if d < t2 {
			t2 ^= rolled
		} else {
			t2 ^= t6 ^ d
		}

		if cic == n64CIC6105 {
			bootOff := 0x0710 + (i & 0xFF)
			t1 += binary.U32BE(bootCode, bootOff) ^ d
		} else {
			t1 += d ^ t5
		}
	}

	switch cic {
	case n64CIC6103:
		return (t6 ^ t4) + t3, (t5 ^ t2) + t1, nil
	case n64CIC6106:
		return t6*t4 + t3, t5*t2 + t1, nil
	default:
		return t6 ^ t4 ^ t3, t5 ^ t2 ^ t1, nil
	}
}

// DATChunkNormalizer converts v64 and n64 dumps to big-endian while hashing,
// so all three orderings of a ROM produce the DAT's canonical hashes.
func (*N64Analyzer) DATChunkNormalizer(r io.ReadSeeker, headerOffset int64) (ChunkNormalizer, error) {
	magic := make([]byte, 4)
	if err := ReadAtOrTooSmall(r, headerOffset, magic); err != nil {
		return nil, err
	}
	if _, err := r.Seek(headerOffset, io.SeekStart); err != nil {
		return nil, IoError(err)
	}
	order, ok := DetectN64ByteOrder(magic)
	if !ok || order == N64OrderZ64 {
		return nil, nil
	}
	return func(chunk []byte, _ int64) {
		NormalizeN64(chunk, order)
	}, nil
}
