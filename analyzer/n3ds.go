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
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/retroforge/romident/internal/binary"
)

// 3DS container constants. Sizes inside NCSD/NCCH headers are expressed in
// media units of 0x200 bytes.
const (
	n3dsMediaUnit     = 0x200
	n3dsNCSDMagicOff  = 0x100
	n3dsMinCCISize    = 0x4200
	n3dsCIAHeaderSize = 0x2020
	n3dsMinCIASize    = n3dsCIAHeaderSize + 64
	n3dsCardSeedOff   = 0x1000
	n3dsCardSeedLen   = 16
)

var (
	ncsdMagic = []byte("NCSD")
	ncchMagic = []byte("NCCH")
)

// n3dsFormat distinguishes the two container layers the analyzer accepts.
type n3dsFormat int

const (
	n3dsFormatNone n3dsFormat = iota
	n3dsFormatCCI             // NCSD game-card image (.3ds/.cci)
	n3dsFormatCIA             // installable archive (.cia)
)

// N3DSAnalyzer parses Nintendo 3DS NCSD (CCI) and CIA containers, stepping
// into the first NCCH partition for product metadata.
type N3DSAnalyzer struct {
	PlatformInfo
	DATInfo
}

// New3DSAnalyzer creates the 3DS analyzer.
func New3DSAnalyzer() *N3DSAnalyzer {
	return &N3DSAnalyzer{
		PlatformInfo: PlatformInfo{
			Name:       "Nintendo 3DS",
			Short:      "3ds",
			Maker:      "Nintendo",
			Folders:    []string{"3ds", "nintendo 3ds", "n3ds"},
			Extensions: []string{"3ds", "cci", "cia"},
		},
		DATInfo: DATInfo{
			Source: DATSourceNoIntro,
			Names:  []string{"Nintendo - Nintendo 3DS"},
		},
	}
}

// n3dsDetect classifies the stream as CCI or CIA and rewinds. CIA has no
// magic; it is recognized by the fixed header-size field, a type and version
// of at most 1, and cert, ticket, TMD, and content sizes within plausible
// bounds. The section sizes are not compared against the file size.
func n3dsDetect(r io.ReadSeeker) n3dsFormat {
	size, ok := streamSize(r)
	if !ok {
		return n3dsFormatNone
	}

	if size >= n3dsMinCCISize {
		if magic, ok := peekMagic(r, n3dsNCSDMagicOff, 4); ok && bytes.Equal(magic, ncsdMagic) {
			return n3dsFormatCCI
		}
	}

	if size >= n3dsMinCIASize {
		header, ok := peekMagic(r, 0, 0x20)
		if !ok {
			return n3dsFormatNone
		}
		headerSize := binary.U32LE(header, 0x00)
		ciaType := binary.U16LE(header, 0x04)
		ciaVersion := binary.U16LE(header, 0x06)
		certSize := binary.U32LE(header, 0x08)
		ticketSize := binary.U32LE(header, 0x0C)
		tmdSize := binary.U32LE(header, 0x10)
		contentSize := binary.U64LE(header, 0x18)

		if headerSize == n3dsCIAHeaderSize &&
			ciaType <= 1 && ciaVersion <= 1 &&
			certSize > 0 && certSize < 0x10000 &&
			ticketSize > 0 && ticketSize < 0x10000 &&
			tmdSize > 0 && tmdSize < 0x100000 &&
			contentSize > 0 {
			return n3dsFormatCIA
		}
	}

	return n3dsFormatNone
}

// CanHandle accepts NCSD images and plausible CIA archives.
func (*N3DSAnalyzer) CanHandle(r io.ReadSeeker) bool {
	return n3dsDetect(r) != n3dsFormatNone
}

// Analyze dispatches to the CCI or CIA parser.
func (a *N3DSAnalyzer) Analyze(r io.ReadSeeker, opts *Options) (*Identification, error) {
	size, err := FileSize(r)
	if err != nil {
		return nil, err
	}
	switch n3dsDetect(r) {
	case n3dsFormatCCI:
		return a.analyzeCCI(r, size, opts)
	case n3dsFormatCIA:
		return a.analyzeCIA(r, size, opts)
	default:
		return nil, InvalidFormatError("no NCSD magic and no plausible CIA header")
	}
}

// AnalyzeWithProgress delegates to Analyze; the SHA-256 regions are bounded
// by the partition layout.
func (a *N3DSAnalyzer) AnalyzeWithProgress(r io.ReadSeeker, opts *Options, _ ProgressFunc) (*Identification, error) {
	return a.Analyze(r, opts)
}

// ExtractDATGameCode returns the serial unchanged: 3DS DATs store the full
// CTR-X-YYYY product code, and the default rule would wrongly pick the
// middle segment.
func (*N3DSAnalyzer) ExtractDATGameCode(serial string) string { return serial }

// ExtractScraperSerial returns the serial unchanged for the same reason.
func (*N3DSAnalyzer) ExtractScraperSerial(serial string) string { return serial }

// ---------------------------------------------------------------------------
// NCSD (CCI)
// ---------------------------------------------------------------------------

// ncsdHeader is the parsed NCSD header plus card-info fields.
type ncsdHeader struct {
	imageSizeMU     uint32
	mediaID         uint64
	partitions      [8][2]uint32 // offset, size in media units
	mediaPlatform   byte
	mediaType       byte
	writableAddress uint32
	titleVersion    uint16
	cardRevision    uint16
	filledSize      uint64
	signatureIsZero bool
	cardSeedIsZero  bool
}

func parseNCSDHeader(r io.ReadSeeker) (*ncsdHeader, error) {
	buf := make([]byte, 0x400)
	if err := ReadAtOrTooSmall(r, 0, buf); err != nil {
		return nil, err
	}
	if !bytes.Equal(buf[n3dsNCSDMagicOff:n3dsNCSDMagicOff+4], ncsdMagic) {
		return nil, InvalidFormatError("missing NCSD magic at 0x100")
	}

	h := &ncsdHeader{
		imageSizeMU:     binary.U32LE(buf, 0x104),
		mediaID:         binary.U64LE(buf, 0x108),
		mediaPlatform:   buf[0x188+4],
		mediaType:       buf[0x188+5],
		writableAddress: binary.U32LE(buf, 0x200),
		titleVersion:    binary.U16LE(buf, 0x310),
		cardRevision:    binary.U16LE(buf, 0x312),
		filledSize:      uint64(binary.U32LE(buf, 0x300)),
		signatureIsZero: binary.AllZero(buf[0x000:0x100]),
	}
	for i := range h.partitions {
		base := 0x120 + i*8
		h.partitions[i] = [2]uint32{binary.U32LE(buf, base), binary.U32LE(buf, base+4)}
	}

	seed := make([]byte, n3dsCardSeedLen)
	if err := binary.ReadAt(r, n3dsCardSeedOff, seed); err != nil {
		h.cardSeedIsZero = true
	} else {
		h.cardSeedIsZero = binary.AllZero(seed)
	}

	return h, nil
}

func (a *N3DSAnalyzer) analyzeCCI(r io.ReadSeeker, size int64, opts *Options) (*Identification, error) {
	ncsd, err := parseNCSDHeader(r)
	if err != nil {
		return nil, err
	}
	if ncsd.partitions[0][1] == 0 {
		return nil, CorruptedHeaderError("NCSD partition 0 has zero size")
	}

	partition0 := int64(ncsd.partitions[0][0]) * n3dsMediaUnit
	ncch, err := parseNCCHHeader(r, partition0)
	if err != nil {
		return nil, err
	}

	id := NewIdentification("Nintendo 3DS")
	id.FileSize = size
	id.SetExtra("format", "CCI")

	n3dsApplyNCCH(id, ncch)

	if ncsd.titleVersion > 0 {
		id.Version = fmt.Sprintf("v%d.%d.%d",
			ncsd.titleVersion>>10, ncsd.titleVersion>>4&0x3F, ncsd.titleVersion&0xF)
	} else {
		id.Version = "v0"
	}
	if ncsd.cardRevision > 0 {
		id.SetExtra("card_revision", fmt.Sprintf("%d", ncsd.cardRevision))
	}

	// CCIs are commonly trimmed: anything between the filled size and the
	// full card capacity is a valid dump; shorter than the filled size is
	// genuinely truncated.
	imageSize := int64(ncsd.imageSizeMU) * n3dsMediaUnit
	usedSize := int64(ncsd.filledSize)
	switch {
	case usedSize > 0 && imageSize > 0 && size >= usedSize && size <= imageSize:
		id.ExpectedSize = size
		switch size {
		case usedSize:
			id.SetExtra("dump_status", "Trimmed")
		case imageSize:
			id.SetExtra("dump_status", "Untrimmed")
		default:
			id.SetExtra("dump_status", "Partially trimmed")
		}
	case usedSize > 0 && size < usedSize:
		id.ExpectedSize = usedSize
	case imageSize > 0:
		id.ExpectedSize = imageSize
	}

	id.SetExtra("media_type", n3dsMediaTypeName(ncsd.mediaType))
	if ncsd.mediaPlatform > 0 {
		id.SetExtra("media_platform", n3dsMediaPlatformName(ncsd.mediaPlatform))
	}
	if ncsd.mediaType == 2 && ncsd.writableAddress != 0 && ncsd.writableAddress != 0xFFFFFFFF {
		id.SetExtra("save_offset", fmt.Sprintf("0x%08X", int64(ncsd.writableAddress)*n3dsMediaUnit))
	}

	partitionCount := 0
	partitionNames := [8]string{
		"Main CXI", "Manual", "Download Play", "Partition 3",
		"Partition 4", "Partition 5", "N3DS Update", "Update",
	}
	for i, p := range ncsd.partitions {
		if p[1] == 0 {
			continue
		}
		partitionCount++
		id.SetExtra(fmt.Sprintf("partition_%d", i), fmt.Sprintf(
			"%s: offset 0x%X, size %s", partitionNames[i],
			int64(p[0])*n3dsMediaUnit, formatSize(int64(p[1])*n3dsMediaUnit)))
	}
	id.SetExtra("partition_count", fmt.Sprintf("%d", partitionCount))

	// Card-origin heuristic: an all-zero RSA signature, an all-zero card
	// seed, media type 0, and at most two populated partitions all indicate
	// a CIA-converted image rather than a game-card dump.
	converted := ncsd.signatureIsZero && ncsd.cardSeedIsZero &&
		ncsd.mediaType == 0 && partitionCount <= 2
	if converted {
		id.SetExtra("origin", "Converted from CIA")
	} else {
		id.SetExtra("origin", "Game card dump")
	}
	evidence := fmt.Sprintf("signature_zero=%t card_seed_zero=%t media_type=%d partitions=%d",
		ncsd.signatureIsZero, ncsd.cardSeedIsZero, ncsd.mediaType, partitionCount)
	id.SetExtra("origin_evidence", evidence)

	n3dsVerifyNCCHHashes(r, id, ncch, partition0, opts)

	return id, nil
}

// ---------------------------------------------------------------------------
// NCCH
// ---------------------------------------------------------------------------

// ncchHeader holds the NCCH partition header fields the analyzer consumes.
type ncchHeader struct {
	contentSizeMU      uint32
	makerCode          string
	programID          uint64
	productCode        string
	exheaderHash       [32]byte
	exheaderSize       uint32
	cryptoMethod       byte
	contentPlatform    byte
	contentTypeFlags   byte
	noCrypto           bool
	exefsOffsetMU      uint32
	exefsSizeMU        uint32
	exefsHashRegionMU  uint32
	romfsOffsetMU      uint32
	romfsSizeMU        uint32
	romfsHashRegionMU  uint32
	exefsSuperblockSHA [32]byte
	romfsSuperblockSHA [32]byte
}

// parseNCCHHeader reads the 0x200-byte NCCH header at the given absolute
// offset; "NCCH" must appear at +0x100.
func parseNCCHHeader(r io.ReadSeeker, offset int64) (*ncchHeader, error) {
	buf := make([]byte, 0x200)
	if err := binary.ReadAt(r, offset, buf); err != nil {
		return nil, CorruptedHeaderError("NCCH header truncated at 0x%X", offset)
	}
	if !bytes.Equal(buf[0x100:0x104], ncchMagic) {
		return nil, InvalidFormatError("missing NCCH magic at 0x%X", offset+0x100)
	}

	h := &ncchHeader{
		contentSizeMU:     binary.U32LE(buf, 0x104),
		makerCode:         PrintableASCII(buf[0x110:0x112]),
		programID:         binary.U64LE(buf, 0x118),
		productCode:       binary.CleanString(buf[0x150:0x160]),
		exheaderSize:      binary.U32LE(buf, 0x180),
		cryptoMethod:      buf[0x188+3],
		contentPlatform:   buf[0x188+4],
		contentTypeFlags:  buf[0x188+5],
		noCrypto:          buf[0x188+7]&0x04 != 0,
		exefsOffsetMU:     binary.U32LE(buf, 0x1A0),
		exefsSizeMU:       binary.U32LE(buf, 0x1A4),
		exefsHashRegionMU: binary.U32LE(buf, 0x1A8),
		romfsOffsetMU:     binary.U32LE(buf, 0x1B0),
		romfsSizeMU:       binary.U32LE(buf, 0x1B4),
		romfsHashRegionMU: binary.U32LE(buf, 0x1B8),
	}
	copy(h.exheaderHash[:], buf[0x160:0x180])
	copy(h.exefsSuperblockSHA[:], buf[0x1C0:0x1E0])
	copy(h.romfsSuperblockSHA[:], buf[0x1E0:0x200])
	return h, nil
}

// n3dsApplyNCCH copies NCCH product metadata into the identification.
func n3dsApplyNCCH(id *Identification, ncch *ncchHeader) {
	if ncch.productCode != "" {
		id.SerialNumber = ncch.productCode
		id.SetExtra("product_code", ncch.productCode)
		if region, ok := n3dsProductCodeRegion(ncch.productCode); ok {
			id.AddRegion(region)
		}
	}
	if ncch.makerCode != "" {
		id.SetExtra("maker_code_raw", ncch.makerCode)
		if name := nintendoMakerName(ncch.makerCode); name != "" {
			id.MakerCode = name
		} else {
			id.MakerCode = ncch.makerCode
		}
	}
	if ncch.programID != 0 {
		id.SetExtra("title_id", fmt.Sprintf("%016X", ncch.programID))
		id.SetExtra("title_type", n3dsTitleType(ncch.programID))
	}
	id.SetExtra("content_type", n3dsContentType(ncch.contentTypeFlags))
	if ncch.contentPlatform > 0 {
		id.SetExtra("media_platform", n3dsMediaPlatformName(ncch.contentPlatform))
	}
	if ncch.noCrypto {
		id.SetExtra("encryption", "None (NoCrypto)")
	} else {
		id.SetExtra("encryption", fmt.Sprintf("Encrypted (%s)", n3dsCryptoName(ncch.cryptoMethod)))
	}
	if ncch.exefsSizeMU > 0 {
		id.SetExtra("exefs_size", formatSize(int64(ncch.exefsSizeMU)*n3dsMediaUnit))
	}
	if ncch.romfsSizeMU > 0 {
		id.SetExtra("romfs_size", formatSize(int64(ncch.romfsSizeMU)*n3dsMediaUnit))
	}
}

// n3dsVerifyNCCHHashes verifies the NCCH SHA-256 regions. Only NoCrypto
// partitions are verifiable; encrypted content records unknown.
func n3dsVerifyNCCHHashes(r io.ReadSeeker, id *Identification, ncch *ncchHeader, base int64, opts *Options) {
	verdictFor := func(offset, length int64, want [32]byte) string {
		if opts.Quick || !ncch.noCrypto {
			return ChecksumUnknown
		}
		if length == 0 || binary.AllZero(want[:]) {
			return ChecksumUnknown
		}
		if ok, err := sha256Matches(r, offset, length, want); err == nil {
			if ok {
				return ChecksumValid
			}
			return ChecksumInvalid
		}
		return ChecksumUnknown
	}

	if ncch.exheaderSize > 0 {
		length := int64(ncch.exheaderSize)
		if length > 0x400 {
			length = 0x400
		}
		id.SetChecksumStatus("ExHeader SHA-256",
			verdictFor(base+0x200, length, ncch.exheaderHash))
	}
	if ncch.exefsSizeMU > 0 && ncch.exefsHashRegionMU > 0 {
		id.SetChecksumStatus("ExeFS Superblock SHA-256",
			verdictFor(base+int64(ncch.exefsOffsetMU)*n3dsMediaUnit,
				int64(ncch.exefsHashRegionMU)*n3dsMediaUnit, ncch.exefsSuperblockSHA))
	}
	if ncch.romfsSizeMU > 0 && ncch.romfsHashRegionMU > 0 {
		id.SetChecksumStatus("RomFS Superblock SHA-256",
			verdictFor(base+int64(ncch.romfsOffsetMU)*n3dsMediaUnit,
				int64(ncch.romfsHashRegionMU)*n3dsMediaUnit, ncch.romfsSuperblockSHA))
	}
}

// sha256Matches hashes length bytes at offset in 64 KiB reads and compares.
func sha256Matches(r io.ReadSeeker, offset, length int64, want [32]byte) (bool, error) {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return false, IoError(err)
	}
	h := sha256.New()
	buf := make([]byte, 64*1024)
	for length > 0 {
		n := int64(len(buf))
		if n > length {
			n = length
		}
		if err := ReadExactOrTooSmall(r, buf[:n]); err != nil {
			return false, err
		}
		h.Write(buf[:n])
		length -= n
	}
	var got [32]byte
	h.Sum(got[:0])
	return got == want, nil
}

// ---------------------------------------------------------------------------
// CIA
// ---------------------------------------------------------------------------

// ciaHeader is the fixed 0x2020-byte CIA archive header.
type ciaHeader struct {
	headerSize    uint32
	certChainSize uint32
	ticketSize    uint32
	tmdSize       uint32
	metaSize      uint32
	contentSize   uint64
}

// align64 rounds up to the CIA section alignment of 64 bytes.
func align64(v int64) int64 { return (v + 63) &^ 63 }

func (h *ciaHeader) ticketOffset() int64 {
	return align64(int64(h.headerSize)) + align64(int64(h.certChainSize))
}

func (h *ciaHeader) tmdOffset() int64 {
	return h.ticketOffset() + align64(int64(h.ticketSize))
}

func (h *ciaHeader) contentOffset() int64 {
	return h.tmdOffset() + align64(int64(h.tmdSize))
}

// ciaSignatureBlockSize maps a TMD/Ticket signature type to the bytes to
// skip before the signed body.
func ciaSignatureBlockSize(sigType uint32) (int64, bool) {
	switch sigType {
	case 0x00010003: // RSA-4096
		return 4 + 0x200 + 0x3C, true
	case 0x00010004: // RSA-2048
		return 4 + 0x100 + 0x3C, true
	case 0x00010005: // ECDSA
		return 4 + 0x3C + 0x40, true
	default:
		return 0, false
	}
}

func (a *N3DSAnalyzer) analyzeCIA(r io.ReadSeeker, size int64, opts *Options) (*Identification, error) {
	buf := make([]byte, 0x20)
	if err := ReadAtOrTooSmall(r, 0, buf); err != nil {
		return nil, err
	}
	cia := &ciaHeader{
		headerSize:    binary.U32LE(buf, 0x00),
		certChainSize: binary.U32LE(buf, 0x08),
		ticketSize:    binary.U32LE(buf, 0x0C),
		tmdSize:       binary.U32LE(buf, 0x10),
		metaSize:      binary.U32LE(buf, 0x14),
		contentSize:   binary.U64LE(buf, 0x18),
	}
	if cia.headerSize != n3dsCIAHeaderSize {
		return nil, InvalidFormatError("unexpected CIA header size 0x%X", cia.headerSize)
	}

	id := NewIdentification("Nintendo 3DS")
	id.FileSize = size
	id.SetExtra("format", "CIA")
	id.SetExtra("origin", "Digital (eShop/CIA)")

	contentOffset := cia.contentOffset()
	contentEnd := contentOffset + int64(cia.contentSize)
	if size >= contentEnd {
		id.ExpectedSize = size
	} else {
		expected := contentEnd
		if cia.metaSize > 0 {
			expected += align64(int64(cia.metaSize))
		}
		id.ExpectedSize = expected
	}

	titleID, titleVersion, contentCount, err := parseCIATMD(r, cia.tmdOffset(), cia.tmdSize)
	if err != nil {
		return nil, err
	}
	if titleID != 0 {
		id.SetExtra("title_id", fmt.Sprintf("%016X", titleID))
		id.SetExtra("title_type", n3dsTitleType(titleID))
	}
	if titleVersion > 0 {
		id.Version = fmt.Sprintf("v%d.%d.%d",
			titleVersion>>10, titleVersion>>4&0x3F, titleVersion&0xF)
	} else {
		id.Version = "v0"
	}
	id.SetExtra("content_count", fmt.Sprintf("%d", contentCount))
	if cia.metaSize > 0 {
		id.SetExtra("has_meta", "Yes")
	}

	// Step into the first content and parse its NCCH. Wholly encrypted
	// content has no visible NCCH magic; that variant is recognized but
	// deliberately not parsed.
	ncch, err := parseNCCHHeader(r, contentOffset)
	if err != nil {
		if KindOf(err) == KindInvalidFormat {
			return nil, UnsupportedError("CIA content is encrypted (no NCCH magic at content offset)")
		}
		return nil, err
	}

	n3dsApplyNCCH(id, ncch)
	n3dsVerifyNCCHHashes(r, id, ncch, contentOffset, opts)

	return id, nil
}

// parseCIATMD extracts the title ID, version, and content count from the
// TMD section, skipping the leading signature block.
func parseCIATMD(r io.ReadSeeker, tmdOffset int64, tmdSize uint32) (uint64, uint16, uint16, error) {
	if tmdSize < 8 {
		return 0, 0, 0, CorruptedHeaderError("TMD too small")
	}
	sig := make([]byte, 4)
	if err := ReadAtOrTooSmall(r, tmdOffset, sig); err != nil {
		return 0, 0, 0, err
	}
	skip, ok := ciaSignatureBlockSize(binary.U32BE(sig, 0))
	if !ok {
		return 0, 0, 0, CorruptedHeaderError("unknown TMD signature type %08X", binary.U32BE(sig, 0))
	}

	body := make([]byte, 0xC4)
	if err := ReadAtOrTooSmall(r, tmdOffset+skip, body); err != nil {
		return 0, 0, 0, err
	}
	return binary.U64BE(body, 0x4C), binary.U16BE(body, 0x9C), binary.U16BE(body, 0x9E), nil
}

// ---------------------------------------------------------------------------
// Naming helpers
// ---------------------------------------------------------------------------

// n3dsProductCodeRegion derives the region from the last character of a
// CTR-X-YYYY product code.
func n3dsProductCodeRegion(productCode string) (Region, bool) {
	if productCode == "" {
		return "", false
	}
	switch productCode[len(productCode)-1] {
	case 'J':
		return RegionJapan, true
	case 'E':
		return RegionUSA, true
	case 'P', 'D', 'F', 'S', 'I', 'U':
		return RegionEurope, true
	case 'K':
		return RegionKorea, true
	case 'C':
		return RegionChina, true
	case 'W', 'A':
		return RegionWorld, true
	default:
		return "", false
	}
}

func n3dsMediaTypeName(mediaType byte) string {
	switch mediaType {
	case 0:
		return "Inner Device"
	case 1:
		return "Card1"
	case 2:
		return "Card2"
	case 3:
		return "Extended Device"
	default:
		return "Unknown"
	}
}

func n3dsMediaPlatformName(platform byte) string {
	switch platform {
	case 1:
		return "Old 3DS (CTR)"
	case 2:
		return "New 3DS"
	default:
		return "Unknown"
	}
}

func n3dsCryptoName(method byte) string {
	switch method {
	case 0x00:
		return "Original (pre-7.0)"
	case 0x01:
		return "7.0.0+"
	case 0x0A:
		return "9.3.0+ (New 3DS)"
	case 0x0B:
		return "9.6.0+ (New 3DS)"
	default:
		return "Unknown"
	}
}

func n3dsContentType(flags byte) string {
	formType := flags & 0x03
	category := flags >> 2 & 0x3F
	switch {
	case category == 1:
		return "System update"
	case category == 2:
		return "Manual"
	case category == 3:
		return "Download Play child"
	case category == 4:
		return "Trial"
	case formType == 1:
		return "Simple content"
	case formType == 2:
		return "Executable (no RomFS)"
	case formType == 3:
		return "Executable"
	default:
		return "Unknown"
	}
}

func n3dsTitleType(titleID uint64) string {
	switch uint32(titleID >> 32) {
	case 0x00040000:
		return "Application"
	case 0x00040001:
		return "System Application"
	case 0x00040002:
		return "System Data Archive"
	case 0x00040003:
		return "Shared Data Archive"
	case 0x00040004:
		return "System Firmware"
	case 0x00040010:
		return "Application (TWL)"
	case 0x0004000E:
		return "Patch/Update"
	case 0x0004008C:
		return "DLC"
	default:
		return "Unknown"
	}
}
