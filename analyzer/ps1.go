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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/retroforge/romident/chd"
	"github.com/retroforge/romident/iso9660"
)

// ps1SerialRegions maps serial prefixes to release regions.
var ps1SerialRegions = map[string]Region{
	"SLUS": RegionUSA, "SCUS": RegionUSA,
	"SLPS": RegionJapan, "SCPS": RegionJapan, "SLPM": RegionJapan, "SIPS": RegionJapan,
	"PAPX": RegionJapan, "PCPX": RegionJapan,
	"SLES": RegionEurope, "SCES": RegionEurope, "SCED": RegionEurope,
	"SLKA": RegionKorea, "SCKA": RegionKorea,
}

// PS1Analyzer parses PlayStation disc images: ISO 9660, raw BIN, BIN+CUE,
// and CHD containers.
type PS1Analyzer struct {
	PlatformInfo
	DATInfo
}

// NewPS1Analyzer creates the PS1 analyzer.
func NewPS1Analyzer() *PS1Analyzer {
	return &PS1Analyzer{
		PlatformInfo: PlatformInfo{
			Name:       "PlayStation",
			Short:      "ps1",
			Maker:      "Sony",
			Folders:    []string{"ps1", "psx", "playstation", "playstation1"},
			Extensions: []string{"bin", "cue", "iso", "chd", "img"},
		},
		DATInfo: DATInfo{
			Source:      DATSourceRedump,
			Names:       []string{"Sony - PlayStation"},
			DownloadIDs: []string{"psx"},
		},
	}
}

// CanHandle accepts any of the four disc flavors the format cascade knows.
func (*PS1Analyzer) CanHandle(r io.ReadSeeker) bool {
	format, err := iso9660.DetectFormat(r)
	_, _ = r.Seek(0, io.SeekStart)
	return err == nil && format >= iso9660.FormatCHD && format <= iso9660.FormatISO
}

// Analyze identifies the disc via the detection cascade. CUE sheets need
// opts.FilePath to resolve their BIN tracks.
func (a *PS1Analyzer) Analyze(r io.ReadSeeker, opts *Options) (*Identification, error) {
	return a.analyze(r, opts, nil)
}

// AnalyzeWithProgress identifies the disc, emitting progress ticks while
// walking CHD hunks.
func (a *PS1Analyzer) AnalyzeWithProgress(r io.ReadSeeker, opts *Options, progress ProgressFunc) (*Identification, error) {
	return a.analyze(r, opts, progress)
}

func (a *PS1Analyzer) analyze(r io.ReadSeeker, opts *Options, progress ProgressFunc) (*Identification, error) {
	size, err := FileSize(r)
	if err != nil {
		return nil, err
	}

	format, err := iso9660.DetectFormat(r)
	if err != nil {
		if errors.Is(err, iso9660.ErrNotDisc) {
			return nil, InvalidFormatError("not a recognized PS1 disc image")
		}
		return nil, IoError(err)
	}

	switch format {
	case iso9660.FormatCue:
		return a.analyzeCue(r, size, opts, progress)
	case iso9660.FormatCHD:
		return a.analyzeCHD(r, size, opts, progress)
	default:
		return a.analyzeImage(r, size, format)
	}
}

// analyzeImage handles plain ISO and raw BIN streams.
func (*PS1Analyzer) analyzeImage(r io.ReadSeeker, size int64, format iso9660.DiscFormat) (*Identification, error) {
	sr := iso9660.NewImageReader(r, format)

	pvd, err := iso9660.ReadPVD(sr)
	if err != nil {
		if errors.Is(err, iso9660.ErrPVDNotFound) {
			return nil, InvalidFormatError("no ISO 9660 volume descriptor")
		}
		return nil, IoError(err)
	}

	id, err := ps1IdentifyVolume(sr, pvd)
	if err != nil {
		return nil, err
	}
	id.FileSize = size
	id.SetExtra("format", format.Name())

	// The volume declares its length in sectors; on disk each sector takes
	// the format's physical size.
	sectorBytes := int64(iso9660.SectorSize)
	if format == iso9660.FormatRawBin {
		sectorBytes = iso9660.RawSectorSize
	}
	if pvd.VolumeSpaceSize > 0 {
		id.ExpectedSize = int64(pvd.VolumeSpaceSize) * sectorBytes
	}

	return id, nil
}

// analyzeCue parses the CUE text, counts tracks, then recurses into the
// first data track's BIN file next to the CUE.
func (a *PS1Analyzer) analyzeCue(r io.ReadSeeker, size int64, opts *Options, progress ProgressFunc) (*Identification, error) {
	text, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return nil, IoError(err)
	}
	sheet, err := iso9660.ParseCue(string(text))
	if err != nil {
		return nil, CorruptedHeaderError("CUE parse: %v", err)
	}

	dataFile, ok := sheet.FirstDataFile()
	if !ok {
		return nil, CorruptedHeaderError("CUE sheet references no data track")
	}
	if opts.FilePath == "" {
		return nil, CorruptedHeaderError("CUE analysis needs the sheet's file path to locate %q", dataFile)
	}

	binPath := dataFile
	if !filepath.IsAbs(binPath) {
		binPath = filepath.Join(filepath.Dir(opts.FilePath), binPath)
	}
	bin, err := os.Open(binPath)
	if err != nil {
		return nil, IoError(err)
	}
	defer func() { _ = bin.Close() }()

	binInfo, err := bin.Stat()
	if err != nil {
		return nil, IoError(err)
	}

	binOpts := *opts
	binOpts.FilePath = binPath
	id, err := a.analyze(bin, &binOpts, progress)
	if err != nil {
		return nil, err
	}

	// Report the CUE sheet's own identity on top of the track's.
	id.FileSize = size
	id.SetExtra("format", iso9660.FormatCue.Name())
	id.SetExtra("data_track_file", filepath.Base(binPath))
	id.SetExtra("data_track_size", fmt.Sprintf("%d", binInfo.Size()))

	total, data, audio := sheet.TrackCounts()
	id.SetExtra("total_tracks", fmt.Sprintf("%d", total))
	id.SetExtra("data_tracks", fmt.Sprintf("%d", data))
	id.SetExtra("audio_tracks", fmt.Sprintf("%d", audio))

	return id, nil
}

// chdSectorReader adapts an open CHD to the iso9660 sector interface,
// optionally reporting progress per sector.
type chdSectorReader struct {
	chd      *chd.CHD
	progress ProgressFunc
	read     int64
}

func (c *chdSectorReader) ReadSector(n int64, buf []byte) error {
	if err := c.chd.ReadSector(n, buf); err != nil {
		return err
	}
	if c.progress != nil {
		c.read += int64(len(buf))
		c.progress(c.read, int64(c.chd.Header().LogicalBytes))
	}
	return nil
}

// analyzeCHD opens the CHD container and identifies the disc through
// decompressed sectors, one hunk at a time.
func (*PS1Analyzer) analyzeCHD(r io.ReadSeeker, size int64, opts *Options, progress ProgressFunc) (*Identification, error) {
	c, err := chd.Open(r)
	if err != nil {
		switch {
		case errors.Is(err, chd.ErrUnsupportedVersion), errors.Is(err, chd.ErrUnsupportedCodec):
			return nil, UnsupportedError("%v", err)
		case errors.Is(err, chd.ErrInvalidMagic):
			return nil, InvalidFormatError("%v", err)
		default:
			return nil, CorruptedHeaderError("CHD open: %v", err)
		}
	}

	sr := &chdSectorReader{chd: c, progress: progress}
	pvd, err := iso9660.ReadPVD(sr)
	if err != nil {
		if errors.Is(err, iso9660.ErrPVDNotFound) {
			return nil, CorruptedHeaderError("CHD carries no ISO 9660 volume")
		}
		return nil, CorruptedHeaderError("CHD sector read: %v", err)
	}

	id, err := ps1IdentifyVolume(sr, pvd)
	if err != nil {
		return nil, err
	}
	id.FileSize = size
	id.SetExtra("format", iso9660.FormatCHD.Name())

	header := c.Header()
	id.SetExtra("chd_version", fmt.Sprintf("%d", header.Version))
	id.SetExtra("chd_hunk_bytes", fmt.Sprintf("%d", header.HunkBytes))
	id.SetExtra("chd_unit_bytes", fmt.Sprintf("%d", c.UnitBytes()))
	id.SetExtra("chd_hunk_count", fmt.Sprintf("%d", header.NumHunks()))
	id.SetExtra("chd_logical_size", fmt.Sprintf("%d", header.LogicalBytes))

	if tracks := c.Tracks(); len(tracks) > 0 {
		data, audio := 0, 0
		for _, t := range tracks {
			if t.IsData() {
				data++
			} else {
				audio++
			}
		}
		id.SetExtra("total_tracks", fmt.Sprintf("%d", len(tracks)))
		id.SetExtra("data_tracks", fmt.Sprintf("%d", data))
		id.SetExtra("audio_tracks", fmt.Sprintf("%d", audio))
	}

	return id, nil
}

// ps1IdentifyVolume verifies the PlayStation system identifier, walks the
// root directory for SYSTEM.CNF, and extracts the boot serial.
func ps1IdentifyVolume(sr iso9660.SectorReader, pvd *iso9660.PVD) (*Identification, error) {
	if !strings.HasPrefix(pvd.SystemIdentifier, "PLAYSTATION") {
		return nil, InvalidFormatError("system identifier is %q, not PLAYSTATION", pvd.SystemIdentifier)
	}

	id := NewIdentification("PlayStation")
	if pvd.VolumeIdentifier != "" {
		id.InternalName = pvd.VolumeIdentifier
		id.SetExtra("volume_id", pvd.VolumeIdentifier)
	}

	content, err := iso9660.FindFileInRoot(sr, pvd, "SYSTEM.CNF")
	if err != nil {
		if errors.Is(err, iso9660.ErrFileNotFound) {
			return nil, CorruptedHeaderError("SYSTEM.CNF not found in root directory")
		}
		return nil, CorruptedHeaderError("root directory walk: %v", err)
	}

	cnf, err := iso9660.ParseSystemCnf(string(content))
	if err != nil {
		return nil, CorruptedHeaderError("SYSTEM.CNF: %v", err)
	}
	id.SetExtra("boot_path", cnf.BootPath)
	if cnf.VMode != "" {
		id.SetExtra("vmode", cnf.VMode)
	}

	if serial := iso9660.ExtractPS1Serial(cnf.BootPath); serial != "" {
		id.SerialNumber = serial
		if region, ok := ps1SerialRegions[serial[:4]]; ok {
			id.AddRegion(region)
		}
	}

	return id, nil
}
