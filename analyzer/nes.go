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
	"bytes"
	"fmt"
	"io"
)

// NES header layout.
const (
	nesHeaderSize = 16
	nesTrainerLen = 512
	nesPRGBank    = 16 * 1024
	nesCHRBank    = 8 * 1024

	// fdsSideSize is the byte length of one FDS disk side.
	fdsSideSize = 65500
)

// Format magics accepted by the NES analyzer.
var (
	nesMagic       = []byte{'N', 'E', 'S', 0x1A}
	fdsMagic       = []byte{'F', 'D', 'S', 0x1A}
	unifMagic      = []byte{'U', 'N', 'I', 'F'}
	fdsVerifyBlock = []byte("*NINTENDO-HVC*")
)

// NESAnalyzer parses iNES, NES 2.0, UNIF, and FDS images.
type NESAnalyzer struct {
	PlatformInfo
	DATInfo
}

// NewNESAnalyzer creates the NES analyzer.
func NewNESAnalyzer() *NESAnalyzer {
	return &NESAnalyzer{
		PlatformInfo: PlatformInfo{
			Name:       "Nintendo Entertainment System",
			Short:      "nes",
			Maker:      "Nintendo",
			Folders:    []string{"nes", "famicom", "fc"},
			Extensions: []string{"nes", "unf", "unif", "fds"},
		},
		DATInfo: DATInfo{
			Source: DATSourceNoIntro,
			Names:  []string{"Nintendo - Nintendo Entertainment System"},
		},
	}
}

// CanHandle accepts the iNES, FDS, and UNIF magics, plus headerless FDS
// dumps whose first byte is the block marker 0x01. The headerless probe is
// deliberately loose; Analyze verifies the *NINTENDO-HVC* block and rejects
// false positives with KindInvalidFormat so the registry can move on.
func (*NESAnalyzer) CanHandle(r io.ReadSeeker) bool {
	magic, ok := peekMagic(r, 0, 4)
	if !ok {
		return false
	}
	if bytes.Equal(magic, nesMagic) || bytes.Equal(magic, fdsMagic) || bytes.Equal(magic, unifMagic) {
		return true
	}
	if magic[0] != 0x01 {
		return false
	}
	size, ok := streamSize(r)
	return ok && size >= fdsSideSize && size%fdsSideSize == 0
}

// Analyze parses the NES image.
func (a *NESAnalyzer) Analyze(r io.ReadSeeker, opts *Options) (*Identification, error) {
	size, err := FileSize(r)
	if err != nil {
		return nil, err
	}
	if size < nesHeaderSize {
		return nil, TooSmallError(nesHeaderSize, size)
	}

	header := make([]byte, nesHeaderSize)
	if err := ReadExactOrTooSmall(r, header); err != nil {
		return nil, err
	}

	switch {
	case bytes.Equal(header[:4], nesMagic):
		return a.analyzeINES(header, size)
	case bytes.Equal(header[:4], fdsMagic):
		return a.analyzeFDS(r, size, true)
	case bytes.Equal(header[:4], unifMagic):
		return a.analyzeUNIF(header, size)
	case header[0] == 0x01:
		return a.analyzeFDS(r, size, false)
	default:
		return nil, InvalidFormatError("no iNES, FDS, or UNIF magic")
	}
}

// AnalyzeWithProgress delegates to Analyze; NES parsing is header-only.
func (a *NESAnalyzer) AnalyzeWithProgress(r io.ReadSeeker, opts *Options, _ ProgressFunc) (*Identification, error) {
	return a.Analyze(r, opts)
}

// analyzeINES parses an iNES or NES 2.0 header.
func (*NESAnalyzer) analyzeINES(header []byte, size int64) (*Identification, error) {
	id := NewIdentification("NES")
	id.FileSize = size

	// NES 2.0 discriminator: bits 2-3 of byte 7 equal 10b.
	isNES2 := header[7]&0x0C == 0x08

	flags6 := header[6]
	hasTrainer := flags6&0x04 != 0

	prgSize, chrSize := nesROMSizes(header, isNES2)

	mapper := uint32(flags6>>4) | uint32(header[7]&0xF0)
	if isNES2 {
		mapper |= uint32(header[8]&0x0F) << 8
		id.SetExtra("submapper", fmt.Sprintf("%d", header[8]>>4))
	}

	expected := int64(nesHeaderSize) + prgSize + chrSize
	if hasTrainer {
		expected += nesTrainerLen
	}
	id.ExpectedSize = expected

	format := "iNES"
	if isNES2 {
		format = "NES 2.0"
	}
	id.SetExtra("format", format)
	id.SetExtra("mapper", fmt.Sprintf("%d", mapper))
	id.SetExtra("prg_rom_size", fmt.Sprintf("%d", prgSize))
	id.SetExtra("chr_rom_size", fmt.Sprintf("%d", chrSize))

	mirroring := "horizontal"
	if flags6&0x01 != 0 {
		mirroring = "vertical"
	}
	if flags6&0x08 != 0 {
		mirroring = "four-screen"
	}
	id.SetExtra("mirroring", mirroring)
	if flags6&0x02 != 0 {
		id.SetExtra("battery", "true")
	}
	if hasTrainer {
		id.SetExtra("trainer", "true")
	}

	if isNES2 {
		// Byte 12 carries the CPU/PPU timing mode.
		switch header[12] & 0x03 {
		case 0:
			id.AddRegion(RegionUSA)
			id.SetExtra("timing", "NTSC")
		case 1:
			id.AddRegion(RegionEurope)
			id.SetExtra("timing", "PAL")
		case 2:
			id.AddRegion(RegionWorld)
			id.SetExtra("timing", "multi-region")
		case 3:
			id.AddRegion(RegionOther)
			id.SetExtra("timing", "Dendy")
		}
	}

	return id, nil
}

// nesROMSizes decodes the PRG and CHR sizes, honoring the NES 2.0
// exponent-multiplier form when the size MSB nibble is 0xF.
func nesROMSizes(header []byte, isNES2 bool) (prg, chr int64) {
	prgUnits := int64(header[4])
	chrUnits := int64(header[5])

	if !isNES2 {
		return prgUnits * nesPRGBank, chrUnits * nesCHRBank
	}

	prgMSB := int64(header[9] & 0x0F)
	chrMSB := int64(header[9] >> 4)

	if prgMSB == 0xF {
		exp := header[4] >> 2
		mult := int64(header[4]&0x03)*2 + 1
		prg = (int64(1) << exp) * mult
	} else {
		prg = (prgMSB<<8 | prgUnits) * nesPRGBank
	}

	if chrMSB == 0xF {
		exp := header[5] >> 2
		mult := int64(header[5]&0x03)*2 + 1
		chr = (int64(1) << exp) * mult
	} else {
		chr = (chrMSB<<8 | chrUnits) * nesCHRBank
	}

	return prg, chr
}

// analyzeFDS parses a Famicom Disk System image, headered or raw.
func (*NESAnalyzer) analyzeFDS(r io.ReadSeeker, size int64, headered bool) (*Identification, error) {
	dataStart := int64(0)
	sides := int64(0)
	if headered {
		header := make([]byte, nesHeaderSize)
		if err := ReadAtOrTooSmall(r, 0, header); err != nil {
			return nil, err
		}
		sides = int64(header[4])
		dataStart = nesHeaderSize
	} else {
		sides = size / fdsSideSize
	}

	// The first disk-info block starts with marker 0x01 followed by the
	// literal "*NINTENDO-HVC*" verification string.
	block := make([]byte, 1+len(fdsVerifyBlock)+42)
	if err := ReadAtOrTooSmall(r, dataStart, block); err != nil {
		return nil, err
	}
	if block[0] != 0x01 || !bytes.Equal(block[1:1+len(fdsVerifyBlock)], fdsVerifyBlock) {
		return nil, InvalidFormatError("missing FDS *NINTENDO-HVC* verification block")
	}

	id := NewIdentification("Famicom Disk System")
	id.FileSize = size

	format := "FDS (raw)"
	if headered {
		format = "FDS"
		id.ExpectedSize = nesHeaderSize + sides*fdsSideSize
	} else {
		id.ExpectedSize = sides * fdsSideSize
	}
	id.SetExtra("format", format)
	id.SetExtra("disk_sides", fmt.Sprintf("%d", sides))

	// Game name is the 3-character code at offset 16 of the disk-info block.
	nameOff := 1 + len(fdsVerifyBlock) + 1
	if nameOff+3 <= len(block) {
		if name := PrintableASCII(block[nameOff : nameOff+3]); name != "" {
			id.InternalName = name
		}
	}
	// FDS is a Japan-only system.
	id.AddRegion(RegionJapan)

	return id, nil
}

// analyzeUNIF reports a UNIF container. UNIF chunks carry no serial or
// region, so the record is limited to the format and revision.
func (*NESAnalyzer) analyzeUNIF(header []byte, size int64) (*Identification, error) {
	id := NewIdentification("NES")
	id.FileSize = size
	id.SetExtra("format", "UNIF")
	id.SetExtra("unif_revision", fmt.Sprintf("%d", header[4]))
	return id, nil
}

// DATHeaderSize skips the 16-byte format header when one is present, so
// hashes line up with the headerless No-Intro checksums.
func (*NESAnalyzer) DATHeaderSize(r io.ReadSeeker, _ int64) (int64, error) {
	magic, ok := peekMagic(r, 0, 4)
	if !ok {
		return 0, nil
	}
	if bytes.Equal(magic, nesMagic) || bytes.Equal(magic, fdsMagic) {
		return nesHeaderSize, nil
	}
	return 0, nil
}
