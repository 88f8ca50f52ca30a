package analyzer

import (
	"bytes"
	"testing"
)

// makeGBROM builds a 32 KiB cartridge with a valid logo and checksums.
func makeGBROM(title string, cgbFlag byte) []byte {
	rom := make([]byte, 0x8000)

	// Entry point: NOP + JP 0x0150
	rom[0x0100] = 0x00
	rom[0x0101] = 0xC3
	rom[0x0102] = 0x50
	rom[0x0103] = 0x01

	copy(rom[gbLogoOffset:], gbNintendoLogo)
	copy(rom[gbTitleOffset:], title)

	rom[gbCGBFlagOffset] = cgbFlag
	rom[gbSGBFlagOffset] = 0x00
	rom[gbCartTypeOffset] = 0x00
	rom[gbROMSizeOffset] = 0x00 // 32 KiB
	rom[gbRAMSizeOffset] = 0x00
	rom[gbDestinationOffset] = 0x01 // international
	rom[gbOldLicenseeOffset] = 0x01 // Nintendo
	rom[gbVersionOffset] = 0x00

	recomputeGBChecksums(rom)
	return rom
}

// recomputeGBChecksums fixes up the header and global checksums.
func recomputeGBChecksums(rom []byte) {
	var hc uint8
	for _, b := range rom[gbTitleOffset:gbHeaderCksumOffset] {
		hc = hc - b - 1
	}
	rom[gbHeaderCksumOffset] = hc

	rom[gbGlobalCksumOffset] = 0
	rom[gbGlobalCksumOffset+1] = 0
	var global uint16
	for _, b := range rom {
		global += uint16(b)
	}
	rom[gbGlobalCksumOffset] = byte(global >> 8)
	rom[gbGlobalCksumOffset+1] = byte(global)
}

func TestGBAnalyzer_Tetris(t *testing.T) {
	a := NewGBAnalyzer()
	rom := makeGBROM("TETRIS", 0x00)

	if !a.CanHandle(bytes.NewReader(rom)) {
		t.Fatal("CanHandle() = false for valid GB ROM")
	}

	id, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if id.Platform != "Game Boy" {
		t.Errorf("Platform = %q, want Game Boy", id.Platform)
	}
	if id.InternalName != "TETRIS" {
		t.Errorf("InternalName = %q, want TETRIS", id.InternalName)
	}
	if got := id.Extra["checksum_status:GB Header"]; got != ChecksumValid {
		t.Errorf("header checksum = %q, want valid", got)
	}
	if got := id.Extra["checksum_status:GB Global"]; got != ChecksumValid {
		t.Errorf("global checksum = %q, want valid", got)
	}
	if id.ExpectedSize != 0x8000 {
		t.Errorf("ExpectedSize = %d, want %d", id.ExpectedSize, 0x8000)
	}
	if !id.HasRegion(RegionWorld) {
		t.Errorf("Regions = %v, want World", id.Regions)
	}
	if id.MakerCode != "Nintendo" {
		t.Errorf("MakerCode = %q, want Nintendo", id.MakerCode)
	}
}

func TestGBAnalyzer_CGBFlagVariants(t *testing.T) {
	a := NewGBAnalyzer()

	cases := []struct {
		name         string
		cgbFlag      byte
		wantPlatform string
		wantFormat   string
	}{
		{"dmg", 0x00, "Game Boy", "Game Boy"},
		{"compatible", 0x80, "Game Boy Color", "Game Boy Color (Compatible)"},
		{"exclusive", 0xC0, "Game Boy Color", "Game Boy Color (Exclusive)"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rom := makeGBROM("SHORTNAME", tt.cgbFlag)
			id, err := a.Analyze(bytes.NewReader(rom), &Options{})
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if id.Platform != tt.wantPlatform {
				t.Errorf("Platform = %q, want %q", id.Platform, tt.wantPlatform)
			}
			if id.Extra["format"] != tt.wantFormat {
				t.Errorf("format = %q, want %q", id.Extra["format"], tt.wantFormat)
			}
		})
	}
}

func TestGBAnalyzer_CGBShortensTitle(t *testing.T) {
	a := NewGBAnalyzer()

	// With a CGB flag only 11 title bytes remain; the next 4 are the
	// manufacturer code.
	rom := makeGBROM("ABCDEFGHIJK", 0x80)
	copy(rom[gbManufacturerOff:], "AXQE")
	recomputeGBChecksums(rom)

	id, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if id.InternalName != "ABCDEFGHIJK" {
		t.Errorf("InternalName = %q, want 11-byte title", id.InternalName)
	}
	if id.Extra["manufacturer_code"] != "AXQE" {
		t.Errorf("manufacturer_code = %q, want AXQE", id.Extra["manufacturer_code"])
	}
}

func TestGBAnalyzer_FullTitleWithoutCGB(t *testing.T) {
	a := NewGBAnalyzer()

	// The 16th title byte shares its position with the CGB flag; a
	// printable byte there simply reads as a non-color cartridge.
	rom := makeGBROM("", 0x00)
	copy(rom[gbTitleOffset:], "ABCDEFGHIJKLMNOP")
	recomputeGBChecksums(rom)

	id, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if id.InternalName != "ABCDEFGHIJKLMNOP" {
		t.Errorf("InternalName = %q, want full 16-byte title", id.InternalName)
	}
}

func TestGBAnalyzer_GlobalChecksumExcludesOwnBytes(t *testing.T) {
	a := NewGBAnalyzer()
	rom := makeGBROM("TEST", 0x00)

	// Rewriting the stored checksum must not change the computed value:
	// bytes 0x14E-0x14F are excluded from the sum.
	computed1, err := gbGlobalChecksum(bytes.NewReader(rom), int64(len(rom)))
	if err != nil {
		t.Fatalf("gbGlobalChecksum() error = %v", err)
	}
	rom[gbGlobalCksumOffset] = 0xAB
	rom[gbGlobalCksumOffset+1] = 0xCD
	computed2, err := gbGlobalChecksum(bytes.NewReader(rom), int64(len(rom)))
	if err != nil {
		t.Fatalf("gbGlobalChecksum() error = %v", err)
	}
	if computed1 != computed2 {
		t.Errorf("checksum changed with stored bytes: 0x%04X vs 0x%04X", computed1, computed2)
	}

	id, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got := id.Extra["checksum_status:GB Global"]; got != ChecksumInvalid {
		t.Errorf("global checksum = %q, want invalid after corruption", got)
	}
}

func TestGBAnalyzer_QuickSkipsGlobalChecksum(t *testing.T) {
	a := NewGBAnalyzer()
	rom := makeGBROM("TEST", 0x00)

	id, err := a.Analyze(bytes.NewReader(rom), &Options{Quick: true})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got := id.Extra["checksum_status:GB Global"]; got != ChecksumUnknown {
		t.Errorf("quick global checksum = %q, want unknown", got)
	}
	// The header checksum is header-range only and stays verified.
	if got := id.Extra["checksum_status:GB Header"]; got != ChecksumValid {
		t.Errorf("quick header checksum = %q, want valid", got)
	}
}

func TestGBAnalyzer_JapanRegion(t *testing.T) {
	a := NewGBAnalyzer()
	rom := makeGBROM("TEST", 0x00)
	rom[gbDestinationOffset] = 0x00
	recomputeGBChecksums(rom)

	id, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !id.HasRegion(RegionJapan) {
		t.Errorf("Regions = %v, want Japan", id.Regions)
	}
}

func TestGBAnalyzer_SizeMismatch(t *testing.T) {
	a := NewGBAnalyzer()
	rom := makeGBROM("TEST", 0x00)
	rom[gbROMSizeOffset] = 0x01 // claims 64 KiB
	recomputeGBChecksums(rom)

	id, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if id.FileSize != 0x8000 {
		t.Errorf("FileSize = %d", id.FileSize)
	}
	if id.ExpectedSize != 0x10000 {
		t.Errorf("ExpectedSize = %d, want 0x10000", id.ExpectedSize)
	}
}

func TestGBAnalyzer_BadLogoRejected(t *testing.T) {
	a := NewGBAnalyzer()
	rom := makeGBROM("TEST", 0x00)
	rom[gbLogoOffset] = 0xFF

	if a.CanHandle(bytes.NewReader(rom)) {
		t.Error("CanHandle() accepted a corrupt logo")
	}
	_, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if KindOf(err) != KindInvalidFormat {
		t.Errorf("KindOf(err) = %v, want KindInvalidFormat", KindOf(err))
	}
}
