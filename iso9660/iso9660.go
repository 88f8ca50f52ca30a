// Package iso9660 provides the disc-image plumbing behind the PlayStation
// analyzer: disc format detection, ISO 9660 volume and directory parsing,
// SYSTEM.CNF handling, and CUE sheet parsing.
package iso9660

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Common errors.
var (
	ErrNotDisc      = errors.New("not a recognized disc image")
	ErrPVDNotFound  = errors.New("primary volume descriptor not found")
	ErrFileNotFound = errors.New("file not found in root directory")
	ErrBootMissing  = errors.New("SYSTEM.CNF has no BOOT line")
)

// Sector geometry.
const (
	// SectorSize is the ISO 9660 user-data sector size.
	SectorSize = 2048
	// RawSectorSize is a raw CD sector: sync + header + subheader + data +
	// EDC/ECC.
	RawSectorSize = 2352
	// Mode2Form1DataOffset is where user data starts inside a raw Mode 2
	// Form 1 sector: 12 sync + 4 header + 8 subheader.
	Mode2Form1DataOffset = 24
	// PVDSector is where ISO 9660 places the Primary Volume Descriptor.
	PVDSector = 16
)

// cdSyncPattern opens every raw 2352-byte sector.
var cdSyncPattern = []byte{
	0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00,
}

// chdMagic is the CHD container magic.
var chdMagic = []byte("MComprHD")

// DiscFormat is a detected disc-image flavor.
type DiscFormat int

// Disc-image flavors in detection order.
const (
	FormatCHD DiscFormat = iota
	FormatRawBin
	FormatCue
	FormatISO
)

// Name returns the display name recorded under extra["format"].
func (f DiscFormat) Name() string {
	switch f {
	case FormatCHD:
		return "CHD"
	case FormatRawBin:
		return "Raw BIN"
	case FormatCue:
		return "CUE Sheet"
	default:
		return "ISO 9660"
	}
}

// DetectFormat classifies the stream by its content: CHD magic, raw-sector
// sync pattern, CUE sheet text, then ISO 9660 "CD001" at sector 16. The
// stream is rewound before returning.
func DetectFormat(r io.ReadSeeker) (DiscFormat, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	head := make([]byte, 16)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, err
	}
	head = head[:n]
	defer func() { _, _ = r.Seek(0, io.SeekStart) }()

	if len(head) >= 8 && string(head[:8]) == string(chdMagic) {
		return FormatCHD, nil
	}
	if len(head) >= 12 && string(head[:12]) == string(cdSyncPattern) {
		return FormatRawBin, nil
	}
	if ok, err := looksLikeCue(r); err != nil {
		return 0, err
	} else if ok {
		return FormatCue, nil
	}

	cd001 := make([]byte, 5)
	if _, err := r.Seek(PVDSector*SectorSize+1, io.SeekStart); err == nil {
		if _, err := io.ReadFull(r, cd001); err == nil && string(cd001) == "CD001" {
			return FormatISO, nil
		}
	}

	return 0, ErrNotDisc
}

// looksLikeCue sniffs for CUE sheet text: printable content containing both
// FILE and TRACK keywords.
func looksLikeCue(r io.ReadSeeker) (bool, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return false, err
	}
	buf := make([]byte, 512)
	n, err := r.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	for _, b := range buf[:n] {
		if b < 0x09 || (b > 0x0D && b < 0x20 && b != 0x1A) {
			return false, nil
		}
	}
	text := strings.ToUpper(string(buf[:n]))
	return strings.Contains(text, "FILE ") && strings.Contains(text, "TRACK "), nil
}

// SectorReader yields 2048-byte user-data sectors regardless of the
// underlying image flavor.
type SectorReader interface {
	// ReadSector fills buf (SectorSize bytes) with sector n's user data.
	ReadSector(n int64, buf []byte) error
}

// imageReader reads sectors from a plain ISO or raw BIN stream.
type imageReader struct {
	r   io.ReadSeeker
	raw bool
}

// NewImageReader wraps an ISO 2048 or raw 2352 stream as a SectorReader.
func NewImageReader(r io.ReadSeeker, format DiscFormat) SectorReader {
	return &imageReader{r: r, raw: format == FormatRawBin}
}

// ReadSector implements SectorReader.
func (ir *imageReader) ReadSector(n int64, buf []byte) error {
	offset := n * SectorSize
	if ir.raw {
		offset = n*RawSectorSize + Mode2Form1DataOffset
	}
	if _, err := ir.r.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.ReadFull(ir.r, buf); err != nil {
		return fmt.Errorf("sector %d: %w", n, err)
	}
	return nil
}

// PVD is the parsed ISO 9660 Primary Volume Descriptor.
type PVD struct {
	// SystemIdentifier is the 32-byte system field; "PLAYSTATION" on PS1
	// discs.
	SystemIdentifier string
	// VolumeIdentifier names the volume.
	VolumeIdentifier string
	// VolumeSpaceSize is the volume length in sectors.
	VolumeSpaceSize uint32
	// RootDirLBA locates the root directory extent.
	RootDirLBA uint32
	// RootDirLength is the root directory size in bytes.
	RootDirLength uint32
}

// ReadPVD reads and validates the Primary Volume Descriptor at sector 16.
func ReadPVD(sr SectorReader) (*PVD, error) {
	sector := make([]byte, SectorSize)
	if err := sr.ReadSector(PVDSector, sector); err != nil {
		return nil, err
	}
	if sector[0] != 0x01 || string(sector[1:6]) != "CD001" {
		return nil, ErrPVDNotFound
	}

	root := sector[156:190]
	return &PVD{
		SystemIdentifier: strings.TrimRight(string(sector[8:40]), " "),
		VolumeIdentifier: strings.TrimRight(string(sector[40:72]), " "),
		VolumeSpaceSize:  leU32(sector[80:84]),
		RootDirLBA:       leU32(root[2:6]),
		RootDirLength:    leU32(root[10:14]),
	}, nil
}

func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// dirRecord is one ISO 9660 directory record.
type dirRecord struct {
	extentLBA  uint32
	dataLength uint32
	flags      byte
	identifier string
}

// parseDirRecord decodes a single directory record, or returns false for a
// malformed one.
func parseDirRecord(data []byte) (dirRecord, bool) {
	if len(data) < 33 {
		return dirRecord{}, false
	}
	idLen := int(data[32])
	if 33+idLen > len(data) {
		return dirRecord{}, false
	}
	return dirRecord{
		extentLBA:  leU32(data[2:6]),
		dataLength: leU32(data[10:14]),
		flags:      data[25],
		identifier: string(data[33 : 33+idLen]),
	}, true
}

// FindFileInRoot walks the root directory and returns the named file's
// contents. The comparison is case-insensitive and ignores the ";1" version
// suffix ISO 9660 appends to file identifiers.
func FindFileInRoot(sr SectorReader, pvd *PVD, filename string) ([]byte, error) {
	target := strings.ToUpper(filename)
	dirSectors := (int64(pvd.RootDirLength) + SectorSize - 1) / SectorSize
	sector := make([]byte, SectorSize)

	for s := int64(0); s < dirSectors; s++ {
		if err := sr.ReadSector(int64(pvd.RootDirLBA)+s, sector); err != nil {
			return nil, err
		}
		pos := 0
		for pos < SectorSize {
			recLen := int(sector[pos])
			if recLen == 0 || pos+recLen > SectorSize {
				break
			}
			rec, ok := parseDirRecord(sector[pos : pos+recLen])
			pos += recLen
			if !ok {
				continue
			}
			name := strings.ToUpper(rec.identifier)
			if i := strings.IndexByte(name, ';'); i >= 0 {
				name = name[:i]
			}
			if name == target {
				return readFileContent(sr, rec)
			}
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrFileNotFound, filename)
}

// readFileContent reads a file's full extent sector by sector.
func readFileContent(sr SectorReader, rec dirRecord) ([]byte, error) {
	content := make([]byte, 0, rec.dataLength)
	remaining := int(rec.dataLength)
	sector := make([]byte, SectorSize)
	for s := int64(0); remaining > 0; s++ {
		if err := sr.ReadSector(int64(rec.extentLBA)+s, sector); err != nil {
			return nil, err
		}
		n := remaining
		if n > SectorSize {
			n = SectorSize
		}
		content = append(content, sector[:n]...)
		remaining -= n
	}
	return content, nil
}
