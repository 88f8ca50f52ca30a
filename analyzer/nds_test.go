package analyzer

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// makeNDSROM builds a 64 KiB image with a valid header and a decrypted
// secure area.
func makeNDSROM() []byte {
	rom := make([]byte, 0x10000)

	copy(rom[ndsTitleOffset:], "TESTGAME")
	copy(rom[ndsGameCodeOff:], "ADME")
	copy(rom[ndsMakerCodeOff:], "01")
	rom[ndsUnitCodeOff] = 0x00
	rom[ndsCapacityOff] = 0x00 // 128 KiB chip
	rom[ndsRegionLockOff] = 0x00
	rom[ndsVersionOff] = 0x00

	binary.LittleEndian.PutUint32(rom[ndsARM9OffsetOff:], 0x4000)
	binary.LittleEndian.PutUint32(rom[ndsUsedROMSizeOff:], uint32(len(rom)))
	binary.LittleEndian.PutUint32(rom[0x084:], 0x4000) // header size

	copy(rom[ndsLogoOffset:], nintendoCompressedLogo)
	binary.LittleEndian.PutUint16(rom[ndsLogoCRCOff:], crc16(rom[ndsLogoOffset:ndsLogoCRCOff]))

	copy(rom[ndsSecureAreaStart:], ndsDecryptedMagic)

	recomputeNDSHeaderChecksum(rom)
	return rom
}

func recomputeNDSHeaderChecksum(rom []byte) {
	binary.LittleEndian.PutUint16(rom[ndsHeaderCRCOff:], crc16(rom[:ndsHeaderCRCOff]))
}

func TestNDSLogoChecksumLiteral(t *testing.T) {
	// Every valid dump's logo region hashes to the literal 0xCF56.
	logoRegion := make([]byte, ndsLogoCRCOff-ndsLogoOffset)
	copy(logoRegion, nintendoCompressedLogo)
	if got := crc16(logoRegion); got != ndsLogoChecksum {
		t.Errorf("logo CRC-16 = 0x%04X, want 0xCF56", got)
	}
}

func TestNDSAnalyzer_Basic(t *testing.T) {
	a := NewNDSAnalyzer()
	rom := makeNDSROM()

	if !a.CanHandle(bytes.NewReader(rom)) {
		t.Fatal("CanHandle() = false for valid NDS ROM")
	}

	id, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if id.Platform != "Nintendo DS" {
		t.Errorf("Platform = %q", id.Platform)
	}
	if id.InternalName != "TESTGAME" {
		t.Errorf("InternalName = %q", id.InternalName)
	}
	if id.SerialNumber != "NTR-ADME" {
		t.Errorf("SerialNumber = %q, want NTR-ADME", id.SerialNumber)
	}
	if !id.HasRegion(RegionUSA) {
		t.Errorf("Regions = %v, want USA", id.Regions)
	}
	if id.MakerCode != "Nintendo R&D1" {
		t.Errorf("MakerCode = %q", id.MakerCode)
	}
	if got := id.Extra["checksum_status:Logo CRC-16"]; got != ChecksumValid {
		t.Errorf("logo checksum = %q, want valid", got)
	}
	if got := id.Extra["checksum_status:Header CRC-16"]; got != ChecksumValid {
		t.Errorf("header checksum = %q, want valid", got)
	}
	if id.Extra["secure_area"] != "Decrypted" {
		t.Errorf("secure_area = %q, want Decrypted", id.Extra["secure_area"])
	}
	// The stored secure-area CRC covers the encrypted form; on a decrypted
	// dump it stays unverifiable.
	if got := id.Extra["checksum_status:Secure Area CRC-16"]; got != ChecksumUnknown {
		t.Errorf("secure area checksum = %q, want unknown", got)
	}
	if id.ExpectedSize != 0x10000 {
		t.Errorf("ExpectedSize = %d", id.ExpectedSize)
	}
}

func TestNDSAnalyzer_EncryptedSecureArea(t *testing.T) {
	a := NewNDSAnalyzer()
	rom := makeNDSROM()

	copy(rom[ndsSecureAreaStart:], []byte{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0xF0})
	crc := crc16(rom[ndsSecureAreaStart:ndsSecureAreaEnd])
	binary.LittleEndian.PutUint16(rom[ndsSecureCRCOff:], crc)
	recomputeNDSHeaderChecksum(rom)

	id, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if id.Extra["secure_area"] != "Encrypted" {
		t.Errorf("secure_area = %q, want Encrypted", id.Extra["secure_area"])
	}
	if got := id.Extra["checksum_status:Secure Area CRC-16"]; got != ChecksumValid {
		t.Errorf("secure area checksum = %q, want valid", got)
	}

	rom[0x5000] = 0xFF
	id, err = a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got := id.Extra["checksum_status:Secure Area CRC-16"]; got != ChecksumInvalid {
		t.Errorf("secure area checksum = %q, want invalid after corruption", got)
	}
}

func TestNDSAnalyzer_DSiVariants(t *testing.T) {
	a := NewNDSAnalyzer()

	cases := []struct {
		name         string
		unitCode     byte
		wantPlatform string
		wantPrefix   string
	}{
		{"enhanced", 0x02, "Nintendo DS (DSi Enhanced)", "TWL-"},
		{"exclusive", 0x03, "Nintendo DSi", "TWL-"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rom := makeNDSROM()
			rom[ndsUnitCodeOff] = tt.unitCode
			recomputeNDSHeaderChecksum(rom)

			id, err := a.Analyze(bytes.NewReader(rom), &Options{})
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if id.Platform != tt.wantPlatform {
				t.Errorf("Platform = %q, want %q", id.Platform, tt.wantPlatform)
			}
			if !bytes.HasPrefix([]byte(id.SerialNumber), []byte(tt.wantPrefix)) {
				t.Errorf("SerialNumber = %q, want prefix %q", id.SerialNumber, tt.wantPrefix)
			}
		})
	}
}

func TestNDSAnalyzer_RegionLockDisagreement(t *testing.T) {
	a := NewNDSAnalyzer()
	rom := makeNDSROM() // game code ADME -> USA
	rom[ndsRegionLockOff] = 0x40
	recomputeNDSHeaderChecksum(rom)

	id, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !id.HasRegion(RegionUSA) || !id.HasRegion(RegionKorea) {
		t.Errorf("Regions = %v, want the union of both sources", id.Regions)
	}
	if id.Extra[ExtraRegionDisagreement] != "true" {
		t.Error("region disagreement not surfaced")
	}
	if id.Extra["nds_region_lock"] != "Korea" {
		t.Errorf("nds_region_lock = %q", id.Extra["nds_region_lock"])
	}
}

func TestNDSAnalyzer_DumpStatus(t *testing.T) {
	a := NewNDSAnalyzer()

	t.Run("trimmed", func(t *testing.T) {
		rom := makeNDSROM()
		rom[ndsCapacityOff] = 9 // 64 MiB chip
		recomputeNDSHeaderChecksum(rom)

		id, err := a.Analyze(bytes.NewReader(rom), &Options{})
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if id.Extra["dump_status"] != "Trimmed" {
			t.Errorf("dump_status = %q, want Trimmed", id.Extra["dump_status"])
		}
		if id.Extra["cartridge_capacity"] != "64 MB" {
			t.Errorf("cartridge_capacity = %q", id.Extra["cartridge_capacity"])
		}
	})

	t.Run("untrimmed", func(t *testing.T) {
		rom := makeNDSROM()
		rom = append(rom, make([]byte, 128*1024-len(rom))...) // pad to capacity
		recomputeNDSHeaderChecksum(rom)

		id, err := a.Analyze(bytes.NewReader(rom), &Options{})
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if id.Extra["dump_status"] != "Untrimmed" {
			t.Errorf("dump_status = %q, want Untrimmed", id.Extra["dump_status"])
		}
	})

	t.Run("truncated", func(t *testing.T) {
		rom := makeNDSROM()
		binary.LittleEndian.PutUint32(rom[ndsUsedROMSizeOff:], 0x20000)
		recomputeNDSHeaderChecksum(rom)

		id, err := a.Analyze(bytes.NewReader(rom), &Options{Quick: true})
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if id.ExpectedSize != 0x20000 {
			t.Errorf("ExpectedSize = %d, want 0x20000", id.ExpectedSize)
		}
	})
}

func TestNDSAnalyzer_HomebrewSecureArea(t *testing.T) {
	a := NewNDSAnalyzer()
	rom := makeNDSROM()
	binary.LittleEndian.PutUint32(rom[ndsARM9OffsetOff:], 0x0200)
	recomputeNDSHeaderChecksum(rom)

	id, err := a.Analyze(bytes.NewReader(rom), &Options{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if id.Extra["secure_area"] != "None (homebrew)" {
		t.Errorf("secure_area = %q", id.Extra["secure_area"])
	}
}

func TestNDSAnalyzer_QuickSkipsSecureArea(t *testing.T) {
	a := NewNDSAnalyzer()
	rom := makeNDSROM()

	id, err := a.Analyze(bytes.NewReader(rom), &Options{Quick: true})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if _, present := id.Extra["secure_area"]; present {
		t.Error("quick mode classified the secure area")
	}
	if got := id.Extra["checksum_status:Secure Area CRC-16"]; got != ChecksumUnknown {
		t.Errorf("quick secure area checksum = %q, want unknown", got)
	}
}

func TestNDSAnalyzer_GameCodeExtraction(t *testing.T) {
	a := NewNDSAnalyzer()
	if got := a.ExtractDATGameCode("NTR-ADME"); got != "ADME" {
		t.Errorf("ExtractDATGameCode(NTR-ADME) = %q", got)
	}
	if got := a.ExtractDATGameCode("TWL-ADME"); got != "ADME" {
		t.Errorf("ExtractDATGameCode(TWL-ADME) = %q", got)
	}
}
