package analyzer

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestDefaultGameCode(t *testing.T) {
	cases := []struct {
		serial string
		want   string
	}{
		{"NUS-NSME-USA", "NSME"},
		{"AGB-ATEJ-JPN", "ATEJ"},
		{"NTR-ADME-EUR", "ADME"},
		{"CTR-P-ABCE", "P"}, // why the 3DS analyzer overrides the default
		{"SLUS-01234", "SLUS-01234"},
		{"SNS-ZL-USA", "SNS-ZL-USA"}, // SNS is not a recognized prefix
		{"NSME", "NSME"},
		{"", ""},
	}
	for _, tt := range cases {
		if got := DefaultGameCode(tt.serial); got != tt.want {
			t.Errorf("DefaultGameCode(%q) = %q, want %q", tt.serial, got, tt.want)
		}
	}
}

func TestDATInfoDefaults(t *testing.T) {
	info := DATInfo{Names: []string{"Some - Console"}}

	if info.DATSource() != DATSourceNoIntro {
		t.Error("default source should be No-Intro")
	}
	if ids := info.DATDownloadIDs(); len(ids) != 1 || ids[0] != "Some - Console" {
		t.Errorf("DATDownloadIDs() = %v, want the DAT names", ids)
	}

	withIDs := DATInfo{Names: []string{"A"}, DownloadIDs: []string{"a-id"}}
	if ids := withIDs.DATDownloadIDs(); len(ids) != 1 || ids[0] != "a-id" {
		t.Errorf("DATDownloadIDs() = %v, want the explicit IDs", ids)
	}

	if skip, err := info.DATHeaderSize(nil, 12345); err != nil || skip != 0 {
		t.Errorf("default DATHeaderSize = %d, %v", skip, err)
	}
	if norm, err := info.DATChunkNormalizer(nil, 0); err != nil || norm != nil {
		t.Error("default DATChunkNormalizer should be nil")
	}
	if got := info.ExtractScraperSerial("NUS-NSME-USA"); got != "NSME" {
		t.Errorf("scraper serial default = %q, want the game code", got)
	}
}

func TestReadExactOrTooSmall(t *testing.T) {
	buf := make([]byte, 8)

	err := ReadExactOrTooSmall(bytes.NewReader([]byte{1, 2, 3}), buf)
	if KindOf(err) != KindTooSmall {
		t.Errorf("truncated read: KindOf = %v, want KindTooSmall", KindOf(err))
	}

	if err := ReadExactOrTooSmall(bytes.NewReader(make([]byte, 8)), buf); err != nil {
		t.Errorf("full read failed: %v", err)
	}
}

func TestFileSize(t *testing.T) {
	r := bytes.NewReader(make([]byte, 1234))
	if _, err := r.Seek(100, io.SeekStart); err != nil {
		t.Fatal(err)
	}

	size, err := FileSize(r)
	if err != nil {
		t.Fatal(err)
	}
	if size != 1234 {
		t.Errorf("FileSize = %d, want 1234", size)
	}
	pos, _ := r.Seek(0, io.SeekCurrent)
	if pos != 0 {
		t.Errorf("position after FileSize = %d, want 0", pos)
	}
}

func TestPrintableASCII(t *testing.T) {
	cases := []struct {
		in   []byte
		want string
	}{
		{[]byte("HELLO\x00\x00\x00"), "HELLO"},
		{[]byte("\xFF\xFFABC\xFF\xFF"), "ABC"},
		{[]byte("  PADDED  "), "PADDED"},
		{[]byte{}, ""},
	}
	for _, tt := range cases {
		if got := PrintableASCII(tt.in); got != tt.want {
			t.Errorf("PrintableASCII(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{TooSmallError(16, 3), KindTooSmall},
		{InvalidFormatError("bad magic"), KindInvalidFormat},
		{CorruptedHeaderError("field %d", 7), KindCorruptedHeader},
		{UnsupportedError("encrypted"), KindUnsupported},
		{IoError(io.ErrClosedPipe), KindIoFailure},
		{errors.New("plain"), KindIoFailure},
	}
	for _, tt := range cases {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}

	wrapped := IoError(io.ErrUnexpectedEOF)
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Error("IoError should unwrap to its cause")
	}
}

func TestIdentificationRegionSet(t *testing.T) {
	id := NewIdentification("Test")
	id.AddRegion(RegionUSA)
	id.AddRegion(RegionJapan)
	id.AddRegion(RegionUSA)

	if len(id.Regions) != 2 {
		t.Errorf("Regions = %v, want a two-element set", id.Regions)
	}
	if !id.HasRegion(RegionUSA) || !id.HasRegion(RegionJapan) {
		t.Errorf("Regions = %v", id.Regions)
	}
}

func TestIdentificationSetExtraDropsEmpty(t *testing.T) {
	id := NewIdentification("Test")
	id.SetExtra("key", "")
	if _, present := id.Extra["key"]; present {
		t.Error("SetExtra stored an empty value")
	}
	id.SetChecksumStatus("X", ChecksumValid)
	if id.Extra["checksum_status:X"] != ChecksumValid {
		t.Error("SetChecksumStatus key form wrong")
	}
}

func TestDATSourceURLs(t *testing.T) {
	if DATSourceNoIntro.String() != "No-Intro" || DATSourceRedump.String() != "Redump" {
		t.Error("source names wrong")
	}
	if DATSourceNoIntro.BaseURL() == DATSourceRedump.BaseURL() {
		t.Error("sources must have distinct base URLs")
	}
}
