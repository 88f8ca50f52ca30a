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

// Package analyzer provides the per-console ROM analyzers, the shared
// identification types, and the content-sensing registry that dispatches an
// open ROM stream to the analyzer that can parse it.
package analyzer

import (
	"io"
	"strings"
)

// Options controls how much of a ROM an analyzer is allowed to read.
type Options struct {
	// Quick limits analyzers to a bounded prefix of the file (at most a few
	// tens of KiB) and skips whole-body checksum verification, the GBA
	// save-type scan, the GB global checksum, and the NDS secure-area check.
	Quick bool

	// FilePath is the absolute path of the file being analyzed, when known.
	// Disc analyzers use it to resolve sibling files (a CUE sheet's BIN
	// tracks); it is optional for everything else.
	FilePath string

	// ComputeHashes asks the scan facade to also produce CRC32/MD5/SHA1
	// digests for DAT matching. It does not change analyzer behavior.
	ComputeHashes bool
}

// ProgressFunc receives periodic progress ticks from long-running analyses.
// processed is monotonically increasing; total may be zero when unknown.
type ProgressFunc func(processed, total int64)

// DATSource identifies which verification database catalogs a platform.
type DATSource int

// Supported DAT sources. Both are mirrored by the LibRetro database.
const (
	// DATSourceNoIntro catalogs cartridge platforms.
	DATSourceNoIntro DATSource = iota
	// DATSourceRedump catalogs optical-disc platforms.
	DATSourceRedump
)

// String returns the human-readable source name.
func (s DATSource) String() string {
	if s == DATSourceRedump {
		return "Redump"
	}
	return "No-Intro"
}

// BaseURL returns the LibRetro mirror directory for this source.
func (s DATSource) BaseURL() string {
	if s == DATSourceRedump {
		return "https://raw.githubusercontent.com/libretro/libretro-database/master/metadat/redump/"
	}
	return "https://raw.githubusercontent.com/libretro/libretro-database/master/metadat/no-intro/"
}

// ChunkNormalizer rewrites one chunk of ROM data in place before it is fed to
// the hashers. off is the chunk's offset relative to the first hashed byte.
type ChunkNormalizer func(chunk []byte, off int64)

// Analyzer is the capability every console parser implements.
//
// The DAT-related methods all have documented defaults (provided by the
// embeddable DATInfo); analyzers override only where their platform differs.
type Analyzer interface {
	// PlatformName returns the full display name, e.g. "Game Boy Color".
	PlatformName() string
	// ShortName returns the canonical short name used for CLI arguments and
	// folder matching, e.g. "gbc".
	ShortName() string
	// Manufacturer returns the console manufacturer.
	Manufacturer() string
	// FolderNames returns all folder names that match this console,
	// case-insensitively. The short name is always the first entry.
	FolderNames() []string
	// FileExtensions returns extensions commonly used for this platform,
	// without the leading dot.
	FileExtensions() []string

	// CanHandle peeks magic bytes and reports whether Analyze is worth
	// calling. It must restore the stream position and must never fail; an
	// I/O error means "cannot handle".
	CanHandle(r io.ReadSeeker) bool

	// Analyze parses the ROM and returns its identification, or an *Error
	// carrying one of the ErrorKind values.
	Analyze(r io.ReadSeeker, opts *Options) (*Identification, error)

	// AnalyzeWithProgress is Analyze plus periodic progress ticks for
	// analyses that read substantially more than the header (PS1 CHD walks,
	// GBA save scans). Analyzers without such a phase delegate to Analyze.
	AnalyzeWithProgress(r io.ReadSeeker, opts *Options, progress ProgressFunc) (*Identification, error)

	// DATSource returns which database catalogs this platform.
	// Default: DATSourceNoIntro.
	DATSource() DATSource
	// DATNames returns the display names of the DAT files to merge into this
	// platform's index. Empty means no DAT support.
	DATNames() []string
	// DATDownloadIDs returns the identifiers used for URL construction by
	// the cache collaborator. Default: DATNames.
	DATDownloadIDs() []string
	// DATHeaderSize returns the number of bytes to skip at the front of the
	// file before hashing, so hashes agree with the headerless DAT
	// checksums. Default: 0.
	DATHeaderSize(r io.ReadSeeker, fileSize int64) (int64, error)
	// DATChunkNormalizer returns the per-chunk normalization to apply while
	// hashing, or nil when none is needed. headerOffset is the number of
	// bytes DATHeaderSize chose to skip. Default: nil.
	DATChunkNormalizer(r io.ReadSeeker, headerOffset int64) (ChunkNormalizer, error)
	// ExtractDATGameCode maps a full header serial (NUS-NSME-USA) to the
	// code stored in DATs (NSME). Default: DefaultGameCode.
	ExtractDATGameCode(serial string) string
	// ExtractScraperSerial adapts a serial for scraper lookups.
	// Default: delegates to ExtractDATGameCode.
	ExtractScraperSerial(serial string) string
}

// serialPrefixes are the console prefixes recognized by the default game-code
// extraction rule.
var serialPrefixes = map[string]bool{
	"NUS": true, // Nintendo 64
	"AGB": true, // Game Boy Advance
	"NTR": true, // Nintendo DS
	"TWL": true, // Nintendo DSi
	"DMG": true, // Game Boy
	"CGB": true, // Game Boy Color
	"CTR": true, // Nintendo 3DS
}

// DefaultGameCode implements the default serial-to-game-code rule: when the
// serial has at least two hyphens and its first segment is a known console
// prefix, the second segment is the game code; otherwise the serial is
// returned unchanged.
func DefaultGameCode(serial string) string {
	parts := strings.Split(serial, "-")
	if len(parts) >= 3 && serialPrefixes[parts[0]] {
		return parts[1]
	}
	return serial
}

// DATInfo carries the static DAT capability of a platform and provides the
// documented defaults for the Analyzer DAT methods. Analyzers embed it and
// shadow only the methods their platform overrides.
type DATInfo struct {
	Source      DATSource
	Names       []string
	DownloadIDs []string
}

// DATSource returns the configured source.
func (d DATInfo) DATSource() DATSource { return d.Source }

// DATNames returns the configured DAT display names.
func (d DATInfo) DATNames() []string { return d.Names }

// DATDownloadIDs returns the configured download identifiers, falling back to
// the DAT names when none are set.
func (d DATInfo) DATDownloadIDs() []string {
	if len(d.DownloadIDs) > 0 {
		return d.DownloadIDs
	}
	return d.Names
}

// DATHeaderSize returns 0: most platforms hash the whole file.
func (DATInfo) DATHeaderSize(io.ReadSeeker, int64) (int64, error) { return 0, nil }

// DATChunkNormalizer returns nil: most platforms need no normalization.
func (DATInfo) DATChunkNormalizer(io.ReadSeeker, int64) (ChunkNormalizer, error) {
	return nil, nil
}

// ExtractDATGameCode applies the default game-code rule.
func (DATInfo) ExtractDATGameCode(serial string) string { return DefaultGameCode(serial) }

// ExtractScraperSerial delegates to the default game-code rule.
func (DATInfo) ExtractScraperSerial(serial string) string { return DefaultGameCode(serial) }

// PlatformInfo carries the static display metadata of a platform and answers
// the Analyzer metadata queries without I/O.
type PlatformInfo struct {
	Name       string
	Short      string
	Maker      string
	Folders    []string
	Extensions []string
}

// PlatformName returns the full display name.
func (p PlatformInfo) PlatformName() string { return p.Name }

// ShortName returns the canonical short name.
func (p PlatformInfo) ShortName() string { return p.Short }

// Manufacturer returns the console manufacturer.
func (p PlatformInfo) Manufacturer() string { return p.Maker }

// FolderNames returns all folder names matching this console.
func (p PlatformInfo) FolderNames() []string { return p.Folders }

// FileExtensions returns the platform's common file extensions.
func (p PlatformInfo) FileExtensions() []string { return p.Extensions }

// MatchesFolder reports whether name is one of the platform's folder names,
// compared case-insensitively.
func (p PlatformInfo) MatchesFolder(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, f := range p.Folders {
		if f == name {
			return true
		}
	}
	return false
}
