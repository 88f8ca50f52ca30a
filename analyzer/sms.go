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

// SMS/Game Gear header layout. The 16-byte header normally sits at 0x7FF0;
// small ROMs place it at 0x3FF0 or 0x1FF0 instead.
const (
	smsHeaderLen     = 16
	smsOffChecksum   = 0x0A
	smsOffProduct    = 0x0C
	smsOffRegionSize = 0x0F
)

// smsHeaderBases are the candidate header positions, preferred first.
var smsHeaderBases = []int64{0x7FF0, 0x3FF0, 0x1FF0}

// smsMagic is the literal "TMR SEGA" trademark string.
var smsMagic = []byte("TMR SEGA")

// smsROMSizes maps the size nibble to the declared ROM size. The checksum
// range follows from the size: everything below the header, plus the banked
// area above 0x8000 for larger ROMs.
var smsROMSizes = map[byte]int64{
	0xA: 8 * 1024,
	0xB: 16 * 1024,
	0xC: 32 * 1024,
	0xD: 48 * 1024,
	0xE: 64 * 1024,
	0xF: 128 * 1024,
	0x0: 256 * 1024,
	0x1: 512 * 1024,
	0x2: 1024 * 1024,
}

// SMSAnalyzer parses Sega Master System (and Game Gear) ROMs.
type SMSAnalyzer struct {
	PlatformInfo
	DATInfo
}

// NewSMSAnalyzer creates the SMS analyzer.
func NewSMSAnalyzer() *SMSAnalyzer {
	return &SMSAnalyzer{
		PlatformInfo: PlatformInfo{
			Name:       "Sega Master System",
			Short:      "sms",
			Maker:      "Sega",
			Folders:    []string{"sms", "master system", "mastersystem", "mark iii"},
			Extensions: []string{"sms", "gg"},
		},
		DATInfo: DATInfo{
			Source: DATSourceNoIntro,
			Names:  []string{"Sega - Master System - Mark III"},
		},
	}
}

// smsFindHeader locates the TMR SEGA header, trying 0x7FF0 first.
func smsFindHeader(r io.ReadSeeker, size int64) (int64, []byte, bool) {
	for _, base := range smsHeaderBases {
		if base+smsHeaderLen > size {
			continue
		}
		header := make([]byte, smsHeaderLen)
		if binary.ReadAt(r, base, header) != nil {
			continue
		}
		if bytes.Equal(header[:len(smsMagic)], smsMagic) {
			return base, header, true
		}
	}
	return 0, nil, false
}

// CanHandle probes the three candidate header positions for "TMR SEGA".
func (*SMSAnalyzer) CanHandle(r io.ReadSeeker) bool {
	size, ok := streamSize(r)
	if !ok {
		return false
	}
	_, _, found := smsFindHeader(r, size)
	_, _ = r.Seek(0, io.SeekStart)
	return found
}

// Analyze parses the SMS header and, unless quick mode is set, verifies the
// additive checksum over the size-dependent range.
func (a *SMSAnalyzer) Analyze(r io.ReadSeeker, opts *Options) (*Identification, error) {
	size, err := FileSize(r)
	if err != nil {
		return nil, err
	}
	if size < smsHeaderBases[len(smsHeaderBases)-1]+smsHeaderLen {
		return nil, TooSmallError(smsHeaderBases[len(smsHeaderBases)-1]+smsHeaderLen, size)
	}

	base, header, found := smsFindHeader(r, size)
	if !found {
		return nil, InvalidFormatError("no TMR SEGA header")
	}

	regionSize := header[smsOffRegionSize]
	regionCode := regionSize >> 4
	sizeCode := regionSize & 0x0F

	platform := "Sega Master System"
	if regionCode >= 5 {
		platform = "Sega Game Gear"
	}

	id := NewIdentification(platform)
	id.FileSize = size
	id.SetExtra("header_offset", fmt.Sprintf("0x%04X", base))

	// Product code: four BCD digits in two bytes plus a fifth digit in the
	// high nibble of the version byte.
	digit5 := header[smsOffProduct+2] >> 4
	product := fmt.Sprintf("%X%02X%02X", digit5, header[smsOffProduct+1], header[smsOffProduct])
	for len(product) > 1 && product[0] == '0' {
		product = product[1:]
	}
	id.SerialNumber = product
	id.SetExtra("product_code", product)
	id.Version = fmt.Sprintf("v%d", header[smsOffProduct+2]&0x0F)

	switch regionCode {
	case 3:
		id.SetExtra("region_code", "SMS Japan")
		id.AddRegion(RegionJapan)
	case 4:
		id.SetExtra("region_code", "SMS Export")
		id.AddRegion(RegionWorld)
	case 5:
		id.SetExtra("region_code", "GG Japan")
		id.AddRegion(RegionJapan)
	case 6:
		id.SetExtra("region_code", "GG Export")
		id.AddRegion(RegionWorld)
	case 7:
		id.SetExtra("region_code", "GG International")
		id.AddRegion(RegionWorld)
	default:
		id.SetExtra("region_code", fmt.Sprintf("0x%X", regionCode))
	}

	if declared, ok := smsROMSizes[sizeCode]; ok {
		id.ExpectedSize = declared
		id.SetExtra("rom_size_code", fmt.Sprintf("0x%X", sizeCode))
	}

	if opts.Quick {
		id.SetChecksumStatus("SMS", ChecksumUnknown)
		return id, nil
	}

	stored := binary.U16LE(header, smsOffChecksum)
	computed, err := smsComputeChecksum(r, size, base, sizeCode)
	if err != nil {
		return nil, err
	}
	if computed == stored {
		id.SetChecksumStatus("SMS", ChecksumValid)
	} else {
		id.SetChecksumStatus("SMS", ChecksumInvalid)
	}

	return id, nil
}

// AnalyzeWithProgress delegates to Analyze.
func (a *SMSAnalyzer) AnalyzeWithProgress(r io.ReadSeeker, opts *Options, _ ProgressFunc) (*Identification, error) {
	return a.Analyze(r, opts)
}

// smsComputeChecksum sums bytes over the range selected by the ROM-size
// code: everything below the header, then 0x8000 up to the declared size for
// ROMs declared larger than 32 KiB.
func smsComputeChecksum(r io.ReadSeeker, size, headerBase int64, sizeCode byte) (uint16, error) {
	declared, ok := smsROMSizes[sizeCode]
	if !ok {
		declared = headerBase + smsHeaderLen
	}

	var sum uint16
	buf := make([]byte, 64*1024)

	sumRange := func(start, end int64) error {
		if end > size {
			end = size
		}
		if end <= start {
			return nil
		}
		if _, err := r.Seek(start, io.SeekStart); err != nil {
			return IoError(err)
		}
		remaining := end - start
		for remaining > 0 {
			n := int64(len(buf))
			if n > remaining {
				n = remaining
			}
			if err := ReadExactOrTooSmall(r, buf[:n]); err != nil {
				return err
			}
			for _, b := range buf[:n] {
				sum += uint16(b)
			}
			remaining -= n
		}
		return nil
	}

	// The 16-byte header itself is excluded from its own checksum.
	if err := sumRange(0, headerBase); err != nil {
		return 0, err
	}
	if declared > 0x8000 {
		if err := sumRange(0x8000, declared); err != nil {
			return 0, err
		}
	}
	return sum, nil
}
