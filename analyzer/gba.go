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
	"strings"
)

// GBA cartridge header layout.
const (
	gbaHeaderSize    = 0xC0
	gbaLogoOffset    = 0x04
	gbaLogoLen       = 156
	gbaTitleOffset   = 0xA0
	gbaTitleLen      = 12
	gbaGameCodeOff   = 0xAC
	gbaMakerCodeOff  = 0xB0
	gbaFixedOffset   = 0xB2
	gbaFixedValue    = 0x96
	gbaDeviceTypeOff = 0xB4
	gbaVersionOffset = 0xBC
	gbaComplementOff = 0xBD
	gbaMaxROMSize    = 32 * 1024 * 1024
)

// nintendoCompressedLogo is the 156-byte compressed Nintendo logo shared by
// the GBA header (at 0x04) and the NDS header (at 0xC0).
var nintendoCompressedLogo = []byte{
	0x24, 0xFF, 0xAE, 0x51, 0x69, 0x9A, 0xA2, 0x21, 0x3D, 0x84, 0x82, 0x0A,
	0x84, 0xE4, 0x09, 0xAD, 0x11, 0x24, 0x8B, 0x98, 0xC0, 0x81, 0x7F, 0x21,
	0xA3, 0x52, 0xBE, 0x19, 0x93, 0x09, 0xCE, 0x20, 0x10, 0x46, 0x4A, 0x4A,
	0xF8, 0x27, 0x31, 0xEC, 0x58, 0xC7, 0xE8, 0x33, 0x82, 0xE3, 0xCE, 0xBF,
	0x85, 0xF4, 0xDF, 0x94, 0xCE, 0x4B, 0x09, 0xC1, 0x94, 0x56, 0x8A, 0xC0,
	0x13, 0x72, 0xA7, 0xFC, 0x9F, 0x84, 0x4D, 0x73, 0xA3, 0xCA, 0x9A, 0x61,
	0x58, 0x97, 0xA3, 0x27, 0xFC, 0x03, 0x98, 0x76, 0x23, 0x1D, 0xC7, 0x61,
	0x03, 0x04, 0xAE, 0x56, 0xBF, 0x38, 0x84, 0x00, 0x40, 0xA7, 0x0E, 0xFD,
	0xFF, 0x52, 0xFE, 0x03, 0x6F, 0x95, 0x30, 0xF1, 0x97, 0xFB, 0xC0, 0x85,
	0x60, 0xD6, 0x80, 0x25, 0xA9, 0x63, 0xBE, 0x03, 0x01, 0x4E, 0x38, 0xE2,
	0xF9, 0xA2, 0x34, 0xFF, 0xBB, 0x3E, 0x03, 0x44, 0x78, 0x00, 0x90, 0xCB,
	0x88, 0x11, 0x3A, 0x94, 0x65, 0xC0, 0x7C, 0x63, 0x87, 0xF0, 0x3C, 0xAF,
	0xD6, 0x25, 0xE4, 0x8B, 0x38, 0x0A, 0xAC, 0x72, 0x21, 0xD4, 0xF8, 0x07,
}

// gbaSaveMagics are the library version strings linked into ROMs by the
// official SDK; their presence reveals the cartridge save hardware.
var gbaSaveMagics = []struct {
	magic []byte
	name  string
}{
	{[]byte("EEPROM_V"), "EEPROM"},
	{[]byte("FLASH1M_V"), "Flash 1M"},
	{[]byte("FLASH512_V"), "Flash 512K"},
	{[]byte("FLASH_V"), "Flash"},
	{[]byte("SRAM_V"), "SRAM"},
	{[]byte("SRAM_F_V"), "SRAM"},
}

// gameCodeRegions maps the final game-code character to a region; shared by
// GBA and NDS.
var gameCodeRegions = map[byte]Region{
	'J': RegionJapan,
	'E': RegionUSA,
	'P': RegionEurope,
	'D': RegionEurope, // Germany
	'F': RegionEurope, // France
	'S': RegionEurope, // Spain
	'I': RegionEurope, // Italy
	'U': RegionEurope, // Australia (PAL)
	'K': RegionKorea,
	'C': RegionChina,
	'W': RegionWorld,
	'A': RegionWorld, // region-free
}

// GBAAnalyzer parses Game Boy Advance ROMs.
type GBAAnalyzer struct {
	PlatformInfo
	DATInfo
}

// NewGBAAnalyzer creates the GBA analyzer.
func NewGBAAnalyzer() *GBAAnalyzer {
	return &GBAAnalyzer{
		PlatformInfo: PlatformInfo{
			Name:       "Game Boy Advance",
			Short:      "gba",
			Maker:      "Nintendo",
			Folders:    []string{"gba", "game boy advance", "gameboy advance"},
			Extensions: []string{"gba", "srl", "agb"},
		},
		DATInfo: DATInfo{
			Source: DATSourceNoIntro,
			Names:  []string{"Nintendo - Game Boy Advance"},
		},
	}
}

// CanHandle matches the compressed Nintendo logo at 0x04 together with the
// fixed 0x96 at 0xB2.
func (*GBAAnalyzer) CanHandle(r io.ReadSeeker) bool {
	header, ok := peekMagic(r, 0, gbaHeaderSize)
	if !ok {
		return false
	}
	return bytes.Equal(header[gbaLogoOffset:gbaLogoOffset+gbaLogoLen], nintendoCompressedLogo) &&
		header[gbaFixedOffset] == gbaFixedValue
}

// Analyze parses the header; unless quick mode is set, the whole ROM is then
// scanned for a save-type library string.
func (a *GBAAnalyzer) Analyze(r io.ReadSeeker, opts *Options) (*Identification, error) {
	return a.analyze(r, opts, nil)
}

// AnalyzeWithProgress runs Analyze with progress ticks from the full-ROM
// save-type scan.
func (a *GBAAnalyzer) AnalyzeWithProgress(r io.ReadSeeker, opts *Options, progress ProgressFunc) (*Identification, error) {
	return a.analyze(r, opts, progress)
}

func (a *GBAAnalyzer) analyze(r io.ReadSeeker, opts *Options, progress ProgressFunc) (*Identification, error) {
	size, err := FileSize(r)
	if err != nil {
		return nil, err
	}
	if size < gbaHeaderSize {
		return nil, TooSmallError(gbaHeaderSize, size)
	}

	header := make([]byte, gbaHeaderSize)
	if err := ReadExactOrTooSmall(r, header); err != nil {
		return nil, err
	}
	if !bytes.Equal(header[gbaLogoOffset:gbaLogoOffset+gbaLogoLen], nintendoCompressedLogo) {
		return nil, InvalidFormatError("Nintendo logo mismatch at 0x04")
	}

	id := NewIdentification("Game Boy Advance")
	id.FileSize = size
	id.InternalName = PrintableASCII(header[gbaTitleOffset : gbaTitleOffset+gbaTitleLen])

	gameCode := PrintableASCII(header[gbaGameCodeOff : gbaGameCodeOff+4])
	if len(gameCode) == 4 {
		id.SerialNumber = "AGB-" + gameCode
		id.SetExtra("game_code", gameCode)
		if region, ok := gameCodeRegions[gameCode[3]]; ok {
			id.AddRegion(region)
		}
	}

	makerCode := PrintableASCII(header[gbaMakerCodeOff : gbaMakerCodeOff+2])
	if makerCode != "" {
		id.SetExtra("maker_code_raw", makerCode)
		if name := nintendoMakerName(makerCode); name != "" {
			id.MakerCode = name
		} else {
			id.MakerCode = makerCode
		}
	}

	if header[gbaFixedOffset] == gbaFixedValue {
		id.SetExtra("fixed_value", "0x96")
	} else {
		id.SetExtra("fixed_value", fmt.Sprintf("0x%02X (INVALID)", header[gbaFixedOffset]))
	}
	if dev := header[gbaDeviceTypeOff]; dev != 0 {
		id.SetExtra("device_type", fmt.Sprintf("%02X", dev))
	}

	id.Version = fmt.Sprintf("v%d", header[gbaVersionOffset])

	// Header complement: checksum = (-sum(0xA0..=0xBC) - 0x19) mod 256.
	var sum uint8
	for _, b := range header[gbaTitleOffset:gbaComplementOff] {
		sum += b
	}
	expected := uint8(0) - sum - 0x19
	if expected == header[gbaComplementOff] {
		id.SetChecksumStatus("GBA Complement", ChecksumValid)
	} else {
		id.SetChecksumStatus("GBA Complement", ChecksumInvalid)
	}

	// ROMs are padded to a power of two by the mask ROM, capped at 32 MiB.
	if size > 0 {
		expectedSize := int64(1)
		for expectedSize < size && expectedSize < gbaMaxROMSize {
			expectedSize <<= 1
		}
		id.ExpectedSize = expectedSize
	}

	if opts.Quick {
		return id, nil
	}

	saveType, err := gbaScanSaveType(r, size, progress)
	if err != nil {
		return nil, err
	}
	id.SetExtra("save_type", saveType)

	return id, nil
}

// ExtractDATGameCode strips the AGB- prefix: DATs store the bare
// four-character game code.
func (*GBAAnalyzer) ExtractDATGameCode(serial string) string {
	if code, ok := strings.CutPrefix(serial, "AGB-"); ok {
		return code
	}
	return serial
}

// ExtractScraperSerial delegates to the game-code extraction.
func (a *GBAAnalyzer) ExtractScraperSerial(serial string) string {
	return a.ExtractDATGameCode(serial)
}

// gbaScanSaveType scans the whole ROM for SDK save-library strings, keeping
// a small overlap between chunks so a magic split across a boundary is still
// found. Returns "" when no magic matches.
func gbaScanSaveType(r io.ReadSeeker, size int64, progress ProgressFunc) (string, error) {
	const overlap = 16

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", IoError(err)
	}

	buf := make([]byte, 64*1024+overlap)
	carry := 0
	pos := int64(0)
	for pos < size {
		n := int64(len(buf) - carry)
		if n > size-pos {
			n = size - pos
		}
		if err := ReadExactOrTooSmall(r, buf[carry:carry+int(n)]); err != nil {
			return "", err
		}
		window := buf[:carry+int(n)]
		for _, save := range gbaSaveMagics {
			if idx := bytes.Index(window, save.magic); idx >= 0 {
				return save.name, nil
			}
		}
		pos += n
		if progress != nil {
			progress(pos, size)
		}
		carry = copy(buf, window[len(window)-min(overlap, len(window)):])
	}
	return "", nil
}
