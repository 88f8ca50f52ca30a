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
	"io"

	"github.com/retroforge/romident/internal/binary"
)

// SNES internal header layout, relative to the header base.
const (
	snesLoROMBase     = 0x7FC0
	snesHiROMBase     = 0xFFC0
	snesCopierHeader  = 512
	snesHeaderLen     = 0x40 // header + interrupt vectors
	snesTitleLen      = 21

	snesOffMapMode    = 0x15
	snesOffChipset    = 0x16
	snesOffROMSize    = 0x17
	snesOffRAMSize    = 0x18
	snesOffCountry    = 0x19
	snesOffDeveloper  = 0x1A
	snesOffVersion    = 0x1B
	snesOffComplement = 0x1C
	snesOffChecksum   = 0x1E
	snesOffResetVec   = 0x3C

	// Extended header (developer ID 0x33) sits just below the header base.
	snesExtMakerOff = -0x10
	snesExtCodeOff  = -0x0E
)

// snesCountryRegions maps the country byte to a region.
var snesCountryRegions = map[byte]Region{
	0x00: RegionJapan,
	0x01: RegionUSA,
	0x02: RegionEurope,
	0x03: RegionEurope, // Scandinavia
	0x04: RegionEurope, // Finland
	0x05: RegionEurope, // Denmark
	0x06: RegionEurope, // France
	0x07: RegionEurope, // Netherlands
	0x08: RegionEurope, // Spain
	0x09: RegionEurope, // Germany
	0x0A: RegionEurope, // Italy
	0x0B: RegionChina,
	0x0C: RegionOther, // Indonesia
	0x0D: RegionKorea,
	0x0E: RegionWorld,
	0x10: RegionBrazil,
	0x11: RegionAustralia,
}

// SNESAnalyzer parses Super Nintendo / Super Famicom ROMs.
type SNESAnalyzer struct {
	PlatformInfo
	DATInfo
}

// NewSNESAnalyzer creates the SNES analyzer.
func NewSNESAnalyzer() *SNESAnalyzer {
	return &SNESAnalyzer{
		PlatformInfo: PlatformInfo{
			Name:       "Super Nintendo Entertainment System",
			Short:      "snes",
			Maker:      "Nintendo",
			Folders:    []string{"snes", "sfc", "super famicom", "super nintendo"},
			Extensions: []string{"sfc", "smc", "swc"},
		},
		DATInfo: DATInfo{
			Source: DATSourceNoIntro,
			Names:  []string{"Nintendo - Super Nintendo Entertainment System"},
		},
	}
}

// snesHasCopierHeader reports whether the file size implies a 512-byte copier
// header: copier dumps are 512 bytes past a 1 KiB multiple.
func snesHasCopierHeader(size int64) bool {
	return size%1024 == snesCopierHeader
}

// snesScoreHeader rates how plausible an internal header at base looks.
// Returns a negative score when a mandatory check fails.
func snesScoreHeader(r io.ReadSeeker, base int64) int {
	buf := make([]byte, snesHeaderLen)
	if binary.ReadAt(r, base, buf) != nil {
		return -1
	}

	// Reset vector must point into the upper bank half.
	if binary.U16LE(buf, snesOffResetVec) < 0x8000 {
		return -1
	}

	score := 0

	checksum := binary.U16LE(buf, snesOffChecksum)
	complement := binary.U16LE(buf, snesOffComplement)
	if checksum+complement == 0xFFFF {
		score += 4
	}

	switch buf[snesOffMapMode] {
	case 0x20, 0x30: // LoROM
		if base%0x10000 == snesLoROMBase {
			score += 2
		}
	case 0x21, 0x31: // HiROM
		if base%0x10000 == snesHiROMBase {
			score += 2
		}
	case 0x22, 0x23, 0x25, 0x32, 0x35, 0x3A: // SA-1, ExHiROM, SPC7110
		score++
	default:
		score--
	}

	// Title bytes are JIS X 0201; for scoring purposes printable 8-bit with
	// half-width katakana allowed.
	printable := 0
	for _, c := range buf[:snesTitleLen] {
		if (c >= 0x20 && c <= 0x7E) || (c >= 0xA1 && c <= 0xDF) {
			printable++
		}
	}
	if printable == snesTitleLen {
		score += 2
	} else if printable < snesTitleLen/2 {
		score -= 2
	}

	if buf[snesOffDeveloper] == 0x33 {
		score++
	}
	if buf[snesOffROMSize] >= 0x05 && buf[snesOffROMSize] <= 0x0D {
		score++
	}

	return score
}

// snesLocateHeader finds the best-scoring header base for the file, trying
// the LoROM and HiROM positions, shifted by the copier header when present.
func snesLocateHeader(r io.ReadSeeker, size int64) (base int64, hasCopier bool, ok bool) {
	shift := int64(0)
	hasCopier = snesHasCopierHeader(size)
	if hasCopier {
		shift = snesCopierHeader
	}

	best := -1
	for _, candidate := range []int64{shift + snesLoROMBase, shift + snesHiROMBase} {
		if candidate+snesHeaderLen > size {
			continue
		}
		if score := snesScoreHeader(r, candidate); score > best {
			best = score
			base = candidate
		}
	}
	return base, hasCopier, best >= 4
}

// CanHandle probes for a plausible internal header. SNES has no magic bytes;
// the probe relies on the checksum/complement pair and header sanity, so it
// is registered after every magic-detected format.
func (*SNESAnalyzer) CanHandle(r io.ReadSeeker) bool {
	size, ok := streamSize(r)
	if !ok || size < snesLoROMBase+snesHeaderLen {
		return false
	}
	_, _, ok = snesLocateHeader(r, size)
	_, _ = r.Seek(0, io.SeekStart)
	return ok
}

// Analyze parses the SNES ROM.
func (a *SNESAnalyzer) Analyze(r io.ReadSeeker, opts *Options) (*Identification, error) {
	size, err := FileSize(r)
	if err != nil {
		return nil, err
	}
	if size < snesLoROMBase+snesHeaderLen {
		return nil, TooSmallError(snesLoROMBase+snesHeaderLen, size)
	}

	base, hasCopier, ok := snesLocateHeader(r, size)
	if !ok {
		return nil, InvalidFormatError("no plausible SNES internal header")
	}

	header := make([]byte, snesHeaderLen)
	if err := ReadAtOrTooSmall(r, base, header); err != nil {
		return nil, err
	}

	id := NewIdentification("Super Nintendo Entertainment System")
	id.FileSize = size
	id.InternalName = PrintableASCII(header[:snesTitleLen])

	mapMode := header[snesOffMapMode]
	id.SetExtra("mapping", snesMappingName(mapMode))
	if mapMode&0x10 != 0 {
		id.SetExtra("speed", "FastROM (3.58 MHz)")
	} else {
		id.SetExtra("speed", "SlowROM (2.68 MHz)")
	}
	id.SetExtra("chipset", snesChipsetName(header[snesOffChipset], mapMode))

	if hasCopier {
		id.SetExtra("format", "SMC (copier header)")
		id.SetExtra("copier_header", "Yes")
	} else {
		id.SetExtra("format", "SFC (headerless)")
	}

	romSizeCode := header[snesOffROMSize]
	if romSizeCode > 0 && romSizeCode < 32 {
		expected := int64(1) << romSizeCode * 1024
		if hasCopier {
			expected += snesCopierHeader
		}
		id.ExpectedSize = expected
	}
	if ramCode := header[snesOffRAMSize]; ramCode > 0 && ramCode < 16 {
		id.SetExtra("sram_size", fmt.Sprintf("%d KB", int64(1)<<ramCode))
	}

	country := header[snesOffCountry]
	id.SetExtra("country", snesCountryName(country))
	if region, known := snesCountryRegions[country]; known {
		id.AddRegion(region)
	}

	id.Version = fmt.Sprintf("1.%d", header[snesOffVersion])

	// Developer ID 0x33 signals the extended header below the base, which
	// carries the maker code and the 4-character game code serial.
	if header[snesOffDeveloper] == 0x33 && base+snesExtMakerOff >= 0 {
		ext := make([]byte, 6)
		if err := ReadAtOrTooSmall(r, base+snesExtMakerOff, ext); err == nil {
			maker := PrintableASCII(ext[:2])
			code := PrintableASCII(ext[2:6])
			if maker != "" {
				id.SetExtra("maker_code_raw", maker)
				if name := nintendoMakerName(maker); name != "" {
					id.MakerCode = fmt.Sprintf("%s (%s)", maker, name)
				} else {
					id.MakerCode = maker
				}
			}
			if len(code) == 4 {
				id.SerialNumber = code
				id.SetExtra("game_code", code)
			}
		}
	} else {
		id.SetExtra("developer_id", fmt.Sprintf("0x%02X", header[snesOffDeveloper]))
	}

	if opts.Quick {
		id.SetChecksumStatus("SNES Internal", ChecksumUnknown)
		return id, nil
	}

	skip := int64(0)
	if hasCopier {
		skip = snesCopierHeader
	}
	stored := binary.U16LE(header, snesOffChecksum)
	computed, err := snesComputeChecksum(r, size, skip)
	if err != nil {
		return nil, err
	}
	if computed == stored {
		id.SetChecksumStatus("SNES Internal", ChecksumValid)
	} else {
		id.SetChecksumStatus("SNES Internal", ChecksumInvalid)
	}
	complement := binary.U16LE(header, snesOffComplement)
	if stored+complement == 0xFFFF {
		id.SetExtra("checksum_complement_valid", "Yes")
	} else {
		id.SetExtra("checksum_complement_valid", "No")
	}

	return id, nil
}

// AnalyzeWithProgress delegates to Analyze.
func (a *SNESAnalyzer) AnalyzeWithProgress(r io.ReadSeeker, opts *Options, _ ProgressFunc) (*Identification, error) {
	return a.Analyze(r, opts)
}

// snesComputeChecksum computes the 16-bit additive checksum over the ROM body
// starting at skip. For non-power-of-2 bodies the short tail is mirrored
// cyclically over the base length, matching the console's bank mirroring.
func snesComputeChecksum(r io.ReadSeeker, size, skip int64) (uint16, error) {
	body := size - skip
	if body <= 0 {
		return 0, CorruptedHeaderError("empty ROM body")
	}

	power := int64(1)
	for power*2 <= body {
		power *= 2
	}

	var sum uint16
	buf := make([]byte, 64*1024)

	sumRange := func(start, length int64) error {
		if _, err := r.Seek(skip+start, io.SeekStart); err != nil {
			return IoError(err)
		}
		for length > 0 {
			n := int64(len(buf))
			if n > length {
				n = length
			}
			if err := ReadExactOrTooSmall(r, buf[:n]); err != nil {
				return err
			}
			for _, b := range buf[:n] {
				sum += uint16(b)
			}
			length -= n
		}
		return nil
	}

	if err := sumRange(0, power); err != nil {
		return 0, err
	}

	if tail := body - power; tail > 0 {
		// Mirror the tail cyclically until it covers the base length,
		// matching how the console mirrors short banks.
		covered := int64(0)
		for covered < power {
			n := tail
			if n > power-covered {
				n = power - covered
			}
			if err := sumRange(power, n); err != nil {
				return 0, err
			}
			covered += n
		}
	}

	return sum, nil
}

// snesMappingName decodes the map-mode byte into the mapping variant name.
func snesMappingName(mapMode byte) string {
	name := "LoROM"
	if mapMode&0x01 != 0 {
		name = "HiROM"
	}
	if mapMode&0x04 != 0 {
		name = "Ex" + name
	}
	return name
}

// snesChipsetName describes the cartridge hardware from the chipset byte.
func snesChipsetName(chipset, mapMode byte) string {
	base := ""
	switch chipset & 0x0F {
	case 0x00:
		return "ROM"
	case 0x01:
		return "ROM + RAM"
	case 0x02:
		return "ROM + RAM + Battery"
	case 0x03:
		base = "ROM + Coprocessor"
	case 0x04:
		base = "ROM + Coprocessor + RAM"
	case 0x05:
		base = "ROM + Coprocessor + RAM + Battery"
	case 0x06:
		base = "ROM + Coprocessor + Battery"
	default:
		return fmt.Sprintf("0x%02X", chipset)
	}

	coproc := ""
	switch chipset >> 4 {
	case 0x0:
		coproc = "DSP"
	case 0x1:
		coproc = "Super FX"
	case 0x2:
		coproc = "OBC1"
	case 0x3:
		coproc = "SA-1"
	case 0x4:
		coproc = "S-DD1"
	case 0x5:
		coproc = "S-RTC"
	case 0xE:
		coproc = "Super Game Boy / Satellaview"
	case 0xF:
		coproc = "Custom"
	}
	if coproc != "" {
		return base + " (" + coproc + ")"
	}
	return base
}

// snesCountryName names the country byte for display.
func snesCountryName(country byte) string {
	names := map[byte]string{
		0x00: "Japan", 0x01: "USA", 0x02: "Europe", 0x03: "Scandinavia",
		0x04: "Finland", 0x05: "Denmark", 0x06: "France", 0x07: "Netherlands",
		0x08: "Spain", 0x09: "Germany", 0x0A: "Italy", 0x0B: "China",
		0x0C: "Indonesia", 0x0D: "Korea", 0x0E: "Common (World)",
		0x0F: "Canada", 0x10: "Brazil", 0x11: "Australia",
	}
	if name, ok := names[country]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", country)
}

// DATHeaderSize strips the 512-byte copier header when the file size implies
// one; No-Intro catalogs headerless dumps.
func (*SNESAnalyzer) DATHeaderSize(_ io.ReadSeeker, fileSize int64) (int64, error) {
	if snesHasCopierHeader(fileSize) {
		return snesCopierHeader, nil
	}
	return 0, nil
}
