package analyzer

import (
	"bytes"
	"testing"
)

// makeINESROM builds a minimal iNES image with the given bank counts and
// flag bytes.
func makeINESROM(prgBanks, chrBanks, flags6, flags7 byte) []byte {
	rom := make([]byte, nesHeaderSize+int(prgBanks)*nesPRGBank+int(chrBanks)*nesCHRBank)
	copy(rom, nesMagic)
	rom[4] = prgBanks
	rom[5] = chrBanks
	rom[6] = flags6
	rom[7] = flags7
	return rom
}

func TestNESAnalyzer_INES(t *testing.T) {
	a := NewNESAnalyzer()
	rom := makeINESROM(2, 1, 0x00, 0x00)

	if !a.CanHandle(bytes.NewReader(rom)) {
		t.Fatal("CanHandle() = false for valid iNES image")
	}

	id, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if id.Platform != "NES" {
		t.Errorf("Platform = %q, want %q", id.Platform, "NES")
	}
	if id.Extra["format"] != "iNES" {
		t.Errorf("format = %q, want %q", id.Extra["format"], "iNES")
	}
	// 16 + 2*16384 + 1*8192 = 40976
	if id.ExpectedSize != 40976 {
		t.Errorf("ExpectedSize = %d, want 40976", id.ExpectedSize)
	}
	if id.FileSize != 40976 {
		t.Errorf("FileSize = %d, want 40976", id.FileSize)
	}
	if id.Extra["mapper"] != "0" {
		t.Errorf("mapper = %q, want 0", id.Extra["mapper"])
	}
}

func TestNESAnalyzer_NES2Discriminator(t *testing.T) {
	a := NewNESAnalyzer()

	// Bits 2-3 of byte 7 == 10b marks NES 2.0.
	rom := makeINESROM(2, 1, 0x00, 0x08)
	id, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if id.Extra["format"] != "NES 2.0" {
		t.Errorf("format = %q, want %q", id.Extra["format"], "NES 2.0")
	}
	if id.Extra["submapper"] != "0" {
		t.Errorf("submapper = %q, want 0", id.Extra["submapper"])
	}
}

func TestNESAnalyzer_TrainerAddsToExpectedSize(t *testing.T) {
	a := NewNESAnalyzer()

	plain := makeINESROM(2, 1, 0x00, 0x00)
	withTrainer := makeINESROM(2, 1, 0x04, 0x00)

	idPlain, err := a.Analyze(bytes.NewReader(plain), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	idTrainer, err := a.Analyze(bytes.NewReader(withTrainer), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if idTrainer.ExpectedSize != idPlain.ExpectedSize+512 {
		t.Errorf("trainer ExpectedSize = %d, want %d",
			idTrainer.ExpectedSize, idPlain.ExpectedSize+512)
	}
	if idTrainer.Extra["trainer"] != "true" {
		t.Error("trainer flag not recorded")
	}
}

func TestNESAnalyzer_NES2MapperBits(t *testing.T) {
	a := NewNESAnalyzer()

	// Mapper nibbles: low=5, mid=3, NES 2.0 high nibble=2 -> 0x235 = 565.
	rom := makeINESROM(1, 1, 0x50, 0x38)
	rom[8] = 0x02
	id, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if id.Extra["mapper"] != "565" {
		t.Errorf("mapper = %q, want 565", id.Extra["mapper"])
	}
}

func TestNESAnalyzer_ExponentMultiplierSize(t *testing.T) {
	// NES 2.0 with PRG MSB nibble 0xF: size = 2^exp * (mult*2+1).
	header := make([]byte, nesHeaderSize)
	copy(header, nesMagic)
	header[4] = 0x09<<2 | 0x01 // exp=9, mult=1 -> 512 * 3 = 1536
	header[5] = 0
	header[7] = 0x08
	header[9] = 0x0F

	prg, chr := nesROMSizes(header, true)
	if prg != 1536 {
		t.Errorf("prg = %d, want 1536", prg)
	}
	if chr != 0 {
		t.Errorf("chr = %d, want 0", chr)
	}
}

func TestNESAnalyzer_TooSmall(t *testing.T) {
	a := NewNESAnalyzer()
	_, err := a.Analyze(bytes.NewReader([]byte{'N', 'E', 'S'}), &Options{})
	if err == nil {
		t.Fatal("Analyze() succeeded on 3-byte file")
	}
	if KindOf(err) != KindTooSmall {
		t.Errorf("KindOf(err) = %v, want KindTooSmall", KindOf(err))
	}
}

func TestNESAnalyzer_RawFDSFalsePositive(t *testing.T) {
	a := NewNESAnalyzer()

	// First byte 0x01 and a plausible size admit the probe, but the full
	// parse must reject the missing *NINTENDO-HVC* block.
	data := make([]byte, fdsSideSize)
	data[0] = 0x01

	if !a.CanHandle(bytes.NewReader(data)) {
		t.Fatal("CanHandle() should admit headerless FDS candidates")
	}
	_, err := a.Analyze(bytes.NewReader(data), &Options{})
	if err == nil {
		t.Fatal("Analyze() should reject a file without the verification block")
	}
	if KindOf(err) != KindInvalidFormat {
		t.Errorf("KindOf(err) = %v, want KindInvalidFormat", KindOf(err))
	}
}

func TestNESAnalyzer_FDS(t *testing.T) {
	a := NewNESAnalyzer()

	data := make([]byte, fdsSideSize)
	data[0] = 0x01
	copy(data[1:], fdsVerifyBlock)

	id, err := a.Analyze(bytes.NewReader(data), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if id.Platform != "Famicom Disk System" {
		t.Errorf("Platform = %q", id.Platform)
	}
	if id.Extra["disk_sides"] != "1" {
		t.Errorf("disk_sides = %q, want 1", id.Extra["disk_sides"])
	}
	if !id.HasRegion(RegionJapan) {
		t.Error("FDS should be Japan-region")
	}
}

func TestNESAnalyzer_DATHeaderSize(t *testing.T) {
	a := NewNESAnalyzer()

	rom := makeINESROM(1, 0, 0, 0)
	skip, err := a.DATHeaderSize(bytes.NewReader(rom), int64(len(rom)))
	if err != nil {
		t.Fatalf("DATHeaderSize() error = %v", err)
	}
	if skip != 16 {
		t.Errorf("header skip = %d, want 16", skip)
	}

	skip, err = a.DATHeaderSize(bytes.NewReader(make([]byte, 64)), 64)
	if err != nil {
		t.Fatalf("DATHeaderSize() error = %v", err)
	}
	if skip != 0 {
		t.Errorf("header skip = %d, want 0 for headerless data", skip)
	}
}
