package analyzer

import (
	"bytes"
	"testing"
)

// makeGBAROM builds a 256 KiB ROM with a valid header.
func makeGBAROM() []byte {
	rom := make([]byte, 256*1024)

	// ARM branch placeholder at the entry point.
	rom[3] = 0xEA

	copy(rom[gbaLogoOffset:], nintendoCompressedLogo)
	copy(rom[gbaTitleOffset:], "TESTGAME")
	copy(rom[gbaGameCodeOff:], "ATEJ")
	copy(rom[gbaMakerCodeOff:], "01")
	rom[gbaFixedOffset] = gbaFixedValue

	recomputeGBAChecksum(rom)
	return rom
}

// recomputeGBAChecksum writes the header complement.
func recomputeGBAChecksum(rom []byte) {
	var sum uint8
	for _, b := range rom[gbaTitleOffset:gbaComplementOff] {
		sum += b
	}
	rom[gbaComplementOff] = -sum - 0x19
}

func TestGBAAnalyzer_Basic(t *testing.T) {
	a := NewGBAAnalyzer()
	rom := makeGBAROM()

	if !a.CanHandle(bytes.NewReader(rom)) {
		t.Fatal("CanHandle() = false for valid GBA ROM")
	}

	id, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if id.Platform != "Game Boy Advance" {
		t.Errorf("Platform = %q", id.Platform)
	}
	if id.InternalName != "TESTGAME" {
		t.Errorf("InternalName = %q", id.InternalName)
	}
	if id.SerialNumber != "AGB-ATEJ" {
		t.Errorf("SerialNumber = %q, want AGB-ATEJ", id.SerialNumber)
	}
	if !id.HasRegion(RegionJapan) {
		t.Errorf("Regions = %v, want Japan", id.Regions)
	}
	if id.MakerCode != "Nintendo R&D1" {
		t.Errorf("MakerCode = %q", id.MakerCode)
	}
	if got := id.Extra["checksum_status:GBA Complement"]; got != ChecksumValid {
		t.Errorf("complement = %q, want valid", got)
	}
	if id.ExpectedSize != 256*1024 {
		t.Errorf("ExpectedSize = %d", id.ExpectedSize)
	}
}

func TestGBAAnalyzer_RegionVariants(t *testing.T) {
	a := NewGBAAnalyzer()

	cases := []struct {
		regionChar byte
		want       Region
	}{
		{'E', RegionUSA},
		{'P', RegionEurope},
		{'D', RegionEurope},
		{'F', RegionEurope},
		{'K', RegionKorea},
		{'C', RegionChina},
		{'J', RegionJapan},
	}
	for _, tt := range cases {
		t.Run(string(tt.regionChar), func(t *testing.T) {
			rom := makeGBAROM()
			rom[gbaGameCodeOff+3] = tt.regionChar
			recomputeGBAChecksum(rom)

			id, err := a.Analyze(bytes.NewReader(rom), &Options{})
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if !id.HasRegion(tt.want) {
				t.Errorf("Regions = %v, want %v", id.Regions, tt.want)
			}
		})
	}
}

func TestGBAAnalyzer_ComplementMismatch(t *testing.T) {
	a := NewGBAAnalyzer()
	rom := makeGBAROM()
	rom[gbaComplementOff]++

	id, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got := id.Extra["checksum_status:GBA Complement"]; got != ChecksumInvalid {
		t.Errorf("complement = %q, want invalid", got)
	}
}

func TestGBAAnalyzer_SaveTypeScan(t *testing.T) {
	a := NewGBAAnalyzer()

	cases := []struct {
		magic string
		want  string
	}{
		{"EEPROM_V111", "EEPROM"},
		{"SRAM_V113", "SRAM"},
		{"FLASH1M_V102", "Flash 1M"},
		{"FLASH512_V130", "Flash 512K"},
	}
	for _, tt := range cases {
		t.Run(tt.want, func(t *testing.T) {
			rom := makeGBAROM()
			copy(rom[0x1000:], tt.magic)

			id, err := a.Analyze(bytes.NewReader(rom), &Options{})
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if id.Extra["save_type"] != tt.want {
				t.Errorf("save_type = %q, want %q", id.Extra["save_type"], tt.want)
			}
		})
	}
}

func TestGBAAnalyzer_SaveMagicAcrossChunkBoundary(t *testing.T) {
	a := NewGBAAnalyzer()
	rom := makeGBAROM()
	// Straddle the 64 KiB chunk boundary.
	copy(rom[64*1024-4:], "SRAM_V110")

	id, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if id.Extra["save_type"] != "SRAM" {
		t.Errorf("save_type = %q, want SRAM", id.Extra["save_type"])
	}
}

func TestGBAAnalyzer_QuickSkipsSaveScan(t *testing.T) {
	a := NewGBAAnalyzer()
	rom := makeGBAROM()
	copy(rom[0x1000:], "SRAM_V113")

	id, err := a.Analyze(bytes.NewReader(rom), &Options{Quick: true})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if _, present := id.Extra["save_type"]; present {
		t.Error("quick mode ran the save-type scan")
	}
}

func TestGBAAnalyzer_BadFixedValueRejected(t *testing.T) {
	a := NewGBAAnalyzer()
	rom := makeGBAROM()
	rom[gbaFixedOffset] = 0x00

	if a.CanHandle(bytes.NewReader(rom)) {
		t.Error("CanHandle() accepted a wrong fixed byte")
	}
}

func TestGBAAnalyzer_GameCodeExtraction(t *testing.T) {
	a := NewGBAAnalyzer()
	if got := a.ExtractDATGameCode("AGB-ATEJ"); got != "ATEJ" {
		t.Errorf("ExtractDATGameCode(AGB-ATEJ) = %q, want ATEJ", got)
	}
	if got := a.ExtractDATGameCode("ATEJ"); got != "ATEJ" {
		t.Errorf("ExtractDATGameCode(ATEJ) = %q, want ATEJ", got)
	}
}
