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

	"github.com/retroforge/romident/internal/binary"
)

// GB/GBC cartridge header layout.
const (
	gbHeaderSize        = 0x150
	gbLogoOffset        = 0x0104
	gbLogoLen           = 48
	gbTitleOffset       = 0x0134
	gbShortTitleLen     = 11
	gbFullTitleLen      = 16
	gbManufacturerOff   = 0x013F
	gbCGBFlagOffset     = 0x0143
	gbNewLicenseeOffset = 0x0144
	gbSGBFlagOffset     = 0x0146
	gbCartTypeOffset    = 0x0147
	gbROMSizeOffset     = 0x0148
	gbRAMSizeOffset     = 0x0149
	gbDestinationOffset = 0x014A
	gbOldLicenseeOffset = 0x014B
	gbVersionOffset     = 0x014C
	gbHeaderCksumOffset = 0x014D
	gbGlobalCksumOffset = 0x014E
)

// gbNintendoLogo is the boot-ROM logo bitmap at 0x104. Its presence is the
// authoritative GB/GBC detection signature.
var gbNintendoLogo = []byte{
	0xCE, 0xED, 0x66, 0x66, 0xCC, 0x0D, 0x00, 0x0B,
	0x03, 0x73, 0x00, 0x83, 0x00, 0x0C, 0x00, 0x0D,
	0x00, 0x08, 0x11, 0x1F, 0x88, 0x89, 0x00, 0x0E,
	0xDC, 0xCC, 0x6E, 0xE6, 0xDD, 0xDD, 0xD9, 0x99,
	0xBB, 0xBB, 0x67, 0x63, 0x6E, 0x0E, 0xEC, 0xCC,
	0xDD, 0xDC, 0x99, 0x9F, 0xBB, 0xB9, 0x33, 0x3E,
}

// gbCartridgeTypes names the mapper/peripheral combinations.
var gbCartridgeTypes = map[byte]string{
	0x00: "ROM ONLY",
	0x01: "MBC1",
	0x02: "MBC1+RAM",
	0x03: "MBC1+RAM+BATTERY",
	0x05: "MBC2",
	0x06: "MBC2+BATTERY",
	0x08: "ROM+RAM",
	0x09: "ROM+RAM+BATTERY",
	0x0B: "MMM01",
	0x0C: "MMM01+RAM",
	0x0D: "MMM01+RAM+BATTERY",
	0x0F: "MBC3+TIMER+BATTERY",
	0x10: "MBC3+TIMER+RAM+BATTERY",
	0x11: "MBC3",
	0x12: "MBC3+RAM",
	0x13: "MBC3+RAM+BATTERY",
	0x19: "MBC5",
	0x1A: "MBC5+RAM",
	0x1B: "MBC5+RAM+BATTERY",
	0x1C: "MBC5+RUMBLE",
	0x1D: "MBC5+RUMBLE+RAM",
	0x1E: "MBC5+RUMBLE+RAM+BATTERY",
	0x20: "MBC6",
	0x22: "MBC7+SENSOR+RUMBLE+RAM+BATTERY",
	0xFC: "Pocket Camera",
	0xFD: "Bandai TAMA5",
	0xFE: "HuC3",
	0xFF: "HuC1+RAM+BATTERY",
}

// gbRAMSizes maps the RAM size code to bytes.
var gbRAMSizes = map[byte]int64{
	0x00: 0,
	0x01: 0, // listed but unused
	0x02: 8 * 1024,
	0x03: 32 * 1024,
	0x04: 128 * 1024,
	0x05: 64 * 1024,
}

// GBAnalyzer parses Game Boy and Game Boy Color cartridges.
type GBAnalyzer struct {
	PlatformInfo
	DATInfo
}

// NewGBAnalyzer creates the GB/GBC analyzer.
func NewGBAnalyzer() *GBAnalyzer {
	return &GBAnalyzer{
		PlatformInfo: PlatformInfo{
			Name:       "Game Boy / Game Boy Color",
			Short:      "gb",
			Maker:      "Nintendo",
			Folders:    []string{"gb", "gbc", "gameboy", "game boy"},
			Extensions: []string{"gb", "gbc"},
		},
		DATInfo: DATInfo{
			Source: DATSourceNoIntro,
			Names: []string{
				"Nintendo - Game Boy",
				"Nintendo - Game Boy Color",
			},
		},
	}
}

// CanHandle matches the Nintendo logo at 0x104.
func (*GBAnalyzer) CanHandle(r io.ReadSeeker) bool {
	logo, ok := peekMagic(r, gbLogoOffset, gbLogoLen)
	return ok && bytes.Equal(logo, gbNintendoLogo)
}

// Analyze parses the cartridge header, verifying the header checksum always
// and the global checksum unless quick mode is set.
func (a *GBAnalyzer) Analyze(r io.ReadSeeker, opts *Options) (*Identification, error) {
	size, err := FileSize(r)
	if err != nil {
		return nil, err
	}
	if size < gbHeaderSize {
		return nil, TooSmallError(gbHeaderSize, size)
	}

	header := make([]byte, gbHeaderSize)
	if err := ReadExactOrTooSmall(r, header); err != nil {
		return nil, err
	}
	if !bytes.Equal(header[gbLogoOffset:gbLogoOffset+gbLogoLen], gbNintendoLogo) {
		return nil, InvalidFormatError("Nintendo logo mismatch at 0x104")
	}

	cgbFlag := header[gbCGBFlagOffset]

	platform := "Game Boy"
	format := "Game Boy"
	switch cgbFlag {
	case 0x80:
		platform = "Game Boy Color"
		format = "Game Boy Color (Compatible)"
	case 0xC0:
		platform = "Game Boy Color"
		format = "Game Boy Color (Exclusive)"
	}

	id := NewIdentification(platform)
	id.FileSize = size
	id.SetExtra("format", format)

	// A CGB flag shortens the title field to 11 bytes; the following 4 bytes
	// become the manufacturer code.
	if cgbFlag == 0x80 || cgbFlag == 0xC0 {
		id.InternalName = PrintableASCII(header[gbTitleOffset : gbTitleOffset+gbShortTitleLen])
		mfg := header[gbManufacturerOff : gbManufacturerOff+4]
		upper := true
		for _, c := range mfg {
			if c < 'A' || c > 'Z' {
				upper = false
				break
			}
		}
		if upper {
			id.SetExtra("manufacturer_code", string(mfg))
		}
	} else {
		id.InternalName = PrintableASCII(header[gbTitleOffset : gbTitleOffset+gbFullTitleLen])
	}

	if header[gbSGBFlagOffset] == 0x03 {
		id.SetExtra("sgb", "Yes")
	}

	if name, ok := gbCartridgeTypes[header[gbCartTypeOffset]]; ok {
		id.SetExtra("cartridge_type", name)
	} else {
		id.SetExtra("cartridge_type", "Unknown")
	}

	if code := header[gbROMSizeOffset]; code <= 0x08 {
		id.ExpectedSize = 32 * 1024 << code
		id.SetExtra("rom_banks", fmt.Sprintf("%d", 2<<code))
	}
	if ram, ok := gbRAMSizes[header[gbRAMSizeOffset]]; ok && ram > 0 {
		id.SetExtra("ram_size", fmt.Sprintf("%d KB", ram/1024))
	}

	// The destination byte only distinguishes Japan from everywhere else.
	if header[gbDestinationOffset] == 0x00 {
		id.AddRegion(RegionJapan)
	} else {
		id.AddRegion(RegionWorld)
	}

	old := header[gbOldLicenseeOffset]
	if old == 0x33 {
		code := string(header[gbNewLicenseeOffset : gbNewLicenseeOffset+2])
		if name := nintendoMakerName(code); name != "" {
			id.MakerCode = name
		}
		id.SetExtra("licensee_code", code)
	} else if name, ok := gbOldLicensees[old]; ok {
		id.MakerCode = name
		id.SetExtra("licensee_code", fmt.Sprintf("0x%02X", old))
	}

	id.Version = fmt.Sprintf("v%d", header[gbVersionOffset])

	// Header checksum: x = x - b - 1 over 0x134..0x14C.
	var hc uint8
	for _, b := range header[gbTitleOffset : gbHeaderCksumOffset] {
		hc = hc - b - 1
	}
	if hc == header[gbHeaderCksumOffset] {
		id.SetChecksumStatus("GB Header", ChecksumValid)
	} else {
		id.SetChecksumStatus("GB Header", ChecksumInvalid)
	}

	if opts.Quick {
		id.SetChecksumStatus("GB Global", ChecksumUnknown)
		return id, nil
	}

	stored := binary.U16BE(header, gbGlobalCksumOffset)
	computed, err := gbGlobalChecksum(r, size)
	if err != nil {
		return nil, err
	}
	if computed == stored {
		id.SetChecksumStatus("GB Global", ChecksumValid)
	} else {
		id.SetChecksumStatus("GB Global", ChecksumInvalid)
	}

	return id, nil
}

// AnalyzeWithProgress delegates to Analyze.
func (a *GBAnalyzer) AnalyzeWithProgress(r io.ReadSeeker, opts *Options, _ ProgressFunc) (*Identification, error) {
	return a.Analyze(r, opts)
}

// gbGlobalChecksum sums every byte of the ROM excluding the two checksum
// bytes at 0x14E-0x14F.
func gbGlobalChecksum(r io.ReadSeeker, size int64) (uint16, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, IoError(err)
	}

	var sum uint16
	buf := make([]byte, 64*1024)
	pos := int64(0)
	for pos < size {
		n := int64(len(buf))
		if n > size-pos {
			n = size - pos
		}
		if err := ReadExactOrTooSmall(r, buf[:n]); err != nil {
			return 0, err
		}
		for i, b := range buf[:n] {
			off := pos + int64(i)
			if off == gbGlobalCksumOffset || off == gbGlobalCksumOffset+1 {
				continue
			}
			sum += uint16(b)
		}
		pos += n
	}
	return sum, nil
}
