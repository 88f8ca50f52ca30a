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

	"github.com/retroforge/romident/internal/binary"
)

// NDS cartridge header layout.
const (
	ndsHeaderSize       = 0x200
	ndsTitleOffset      = 0x000
	ndsTitleLen         = 12
	ndsGameCodeOff      = 0x00C
	ndsMakerCodeOff     = 0x010
	ndsUnitCodeOff      = 0x012
	ndsCapacityOff      = 0x014
	ndsRegionLockOff    = 0x01D
	ndsVersionOff       = 0x01E
	ndsARM9OffsetOff    = 0x020
	ndsBannerOffsetOff  = 0x068
	ndsSecureCRCOff     = 0x06C
	ndsUsedROMSizeOff   = 0x080
	ndsLogoOffset       = 0x0C0
	ndsLogoCRCOff       = 0x15C
	ndsHeaderCRCOff     = 0x15E
	ndsSecureAreaStart  = 0x4000
	ndsSecureAreaEnd    = 0x8000
	ndsLogoChecksum     = 0xCF56
)

// ndsDecryptedMagic marks a decrypted secure area. The stored secure-area
// CRC covers the encrypted form, so it cannot be verified on such dumps.
var ndsDecryptedMagic = []byte{0xE7, 0xFF, 0xDE, 0xFF, 0xE7, 0xFF, 0xDE, 0xFF}

// crc16 computes the CRC-16 used across the NDS header: polynomial 0x8005
// reflected (0xA001), initial value 0xFFFF, no final XOR.
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// NDSAnalyzer parses Nintendo DS and DSi cartridge images.
type NDSAnalyzer struct {
	PlatformInfo
	DATInfo
}

// NewNDSAnalyzer creates the NDS analyzer.
func NewNDSAnalyzer() *NDSAnalyzer {
	return &NDSAnalyzer{
		PlatformInfo: PlatformInfo{
			Name:       "Nintendo DS",
			Short:      "nds",
			Maker:      "Nintendo",
			Folders:    []string{"nds", "ds", "nintendo ds"},
			Extensions: []string{"nds", "dsi", "ids"},
		},
		DATInfo: DATInfo{
			Source: DATSourceNoIntro,
			Names:  []string{"Nintendo - Nintendo DS Decrypted"},
		},
	}
}

// CanHandle requires the compressed Nintendo logo at 0xC0 and a stored logo
// CRC-16 equal to the literal 0xCF56 every valid dump carries.
func (*NDSAnalyzer) CanHandle(r io.ReadSeeker) bool {
	header, ok := peekMagic(r, 0, ndsHeaderSize)
	if !ok {
		return false
	}
	if !bytes.Equal(header[ndsLogoOffset:ndsLogoOffset+gbaLogoLen], nintendoCompressedLogo) {
		return false
	}
	return binary.U16LE(header, ndsLogoCRCOff) == ndsLogoChecksum &&
		crc16(header[ndsLogoOffset:ndsLogoCRCOff]) == ndsLogoChecksum
}

// Analyze parses the header and, unless quick mode is set, inspects the
// secure area at 0x4000.
func (a *NDSAnalyzer) Analyze(r io.ReadSeeker, opts *Options) (*Identification, error) {
	size, err := FileSize(r)
	if err != nil {
		return nil, err
	}
	if size < ndsHeaderSize {
		return nil, TooSmallError(ndsHeaderSize, size)
	}

	header := make([]byte, ndsHeaderSize)
	if err := ReadExactOrTooSmall(r, header); err != nil {
		return nil, err
	}

	logoCRC := crc16(header[ndsLogoOffset:ndsLogoCRCOff])
	if logoCRC != ndsLogoChecksum {
		return nil, CorruptedHeaderError("logo CRC-16 is %04X, want CF56", logoCRC)
	}

	unitCode := header[ndsUnitCodeOff]
	platform := "Nintendo DS"
	serialPrefix := "NTR"
	unitName := "NDS"
	switch unitCode {
	case 0x02:
		platform = "Nintendo DS (DSi Enhanced)"
		serialPrefix = "TWL"
		unitName = "NDS+DSi"
	case 0x03:
		platform = "Nintendo DSi"
		serialPrefix = "TWL"
		unitName = "DSi"
	}

	id := NewIdentification(platform)
	id.FileSize = size
	id.InternalName = PrintableASCII(header[ndsTitleOffset : ndsTitleOffset+ndsTitleLen])
	id.SetExtra("unit_code", unitName)

	gameCode := PrintableASCII(header[ndsGameCodeOff : ndsGameCodeOff+4])
	if len(gameCode) == 4 {
		id.SerialNumber = serialPrefix + "-" + gameCode
		id.SetExtra("game_code", gameCode)
	}

	makerCode := PrintableASCII(header[ndsMakerCodeOff : ndsMakerCodeOff+2])
	if makerCode != "" {
		id.SetExtra("maker_code_raw", makerCode)
		if name := nintendoMakerName(makerCode); name != "" {
			id.MakerCode = name
		} else {
			id.MakerCode = makerCode
		}
	}

	// Regions come from two header sources: the game-code suffix and the
	// region-lock byte. Both are consulted; a contradiction is surfaced
	// rather than silently overwritten.
	var codeRegion Region
	if len(gameCode) == 4 {
		if region, ok := gameCodeRegions[gameCode[3]]; ok {
			codeRegion = region
			id.AddRegion(region)
		}
	}
	var lockRegion Region
	switch header[ndsRegionLockOff] {
	case 0x40:
		lockRegion = RegionKorea
		id.SetExtra("nds_region_lock", "Korea")
	case 0x80:
		lockRegion = RegionChina
		id.SetExtra("nds_region_lock", "China")
	}
	if lockRegion != "" {
		id.AddRegion(lockRegion)
		if codeRegion != "" && codeRegion != lockRegion {
			id.SetExtra(ExtraRegionDisagreement, "true")
		}
	}

	id.Version = fmt.Sprintf("v%d", header[ndsVersionOff])

	if banner := binary.U32LE(header, ndsBannerOffsetOff); banner != 0 {
		id.SetExtra("banner_offset", fmt.Sprintf("0x%08X", banner))
	}

	// Size accounting: the chip capacity is 128 KiB << n; dumps trimmed to
	// the used ROM size (or anywhere between used size and capacity) are
	// valid. Only a file shorter than the used size is truncated.
	usedSize := int64(binary.U32LE(header, ndsUsedROMSizeOff))
	capacity := int64(128*1024) << header[ndsCapacityOff]
	id.SetExtra("cartridge_capacity", formatSize(capacity))

	switch {
	case usedSize == 0:
		// Header does not declare a size.
	case size < usedSize:
		id.ExpectedSize = usedSize
	default:
		id.ExpectedSize = size
		switch {
		case size == usedSize && size < capacity:
			id.SetExtra("dump_status", "Trimmed")
		case size == capacity:
			id.SetExtra("dump_status", "Untrimmed")
		case size == usedSize:
			id.SetExtra("dump_status", "Trimmed")
		default:
			id.SetExtra("dump_status", "Partially trimmed")
		}
	}

	storedHeaderCRC := binary.U16LE(header, ndsHeaderCRCOff)
	if crc16(header[:ndsHeaderCRCOff]) == storedHeaderCRC {
		id.SetChecksumStatus("Header CRC-16", ChecksumValid)
	} else {
		id.SetChecksumStatus("Header CRC-16", ChecksumInvalid)
	}
	id.SetChecksumStatus("Logo CRC-16", ChecksumValid)

	if opts.Quick {
		id.SetChecksumStatus("Secure Area CRC-16", ChecksumUnknown)
		return id, nil
	}

	a.checkSecureArea(r, header, size, id)
	return id, nil
}

// AnalyzeWithProgress delegates to Analyze; the secure area is only 16 KiB.
func (a *NDSAnalyzer) AnalyzeWithProgress(r io.ReadSeeker, opts *Options, _ ProgressFunc) (*Identification, error) {
	return a.Analyze(r, opts)
}

// checkSecureArea classifies the 16 KiB secure area at 0x4000 and verifies
// its CRC-16 when the dump is still encrypted. On a decrypted dump the
// stored CRC covers the encrypted bytes, so the verdict stays unknown.
func (*NDSAnalyzer) checkSecureArea(r io.ReadSeeker, header []byte, size int64, id *Identification) {
	arm9Offset := int64(binary.U32LE(header, ndsARM9OffsetOff))
	if arm9Offset < ndsSecureAreaStart {
		id.SetExtra("secure_area", "None (homebrew)")
		return
	}
	if size < ndsSecureAreaEnd {
		return
	}

	secure := make([]byte, ndsSecureAreaEnd-ndsSecureAreaStart)
	if err := ReadAtOrTooSmall(r, ndsSecureAreaStart, secure); err != nil {
		return
	}

	if bytes.Equal(secure[:len(ndsDecryptedMagic)], ndsDecryptedMagic) {
		id.SetExtra("secure_area", "Decrypted")
		id.SetChecksumStatus("Secure Area CRC-16", ChecksumUnknown)
		return
	}

	id.SetExtra("secure_area", "Encrypted")
	stored := binary.U16LE(header, ndsSecureCRCOff)
	if crc16(secure) == stored {
		id.SetChecksumStatus("Secure Area CRC-16", ChecksumValid)
	} else {
		id.SetChecksumStatus("Secure Area CRC-16", ChecksumInvalid)
	}
}

// ExtractDATGameCode strips the NTR-/TWL- prefix: DATs store the bare
// four-character game code.
func (*NDSAnalyzer) ExtractDATGameCode(serial string) string {
	if code, ok := strings.CutPrefix(serial, "NTR-"); ok {
		return code
	}
	if code, ok := strings.CutPrefix(serial, "TWL-"); ok {
		return code
	}
	return serial
}

// ExtractScraperSerial delegates to the game-code extraction.
func (a *NDSAnalyzer) ExtractScraperSerial(serial string) string {
	return a.ExtractDATGameCode(serial)
}

// formatSize renders a byte count with binary units for display fields.
func formatSize(n int64) string {
	switch {
	case n >= 1024*1024 && n%(1024*1024) == 0:
		return fmt.Sprintf("%d MB", n/(1024*1024))
	case n >= 1024 && n%1024 == 0:
		return fmt.Sprintf("%d KB", n/1024)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
