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

// Package romident identifies retro-game ROM files and disc images: it
// senses the console from content, extracts header metadata, and verifies
// dumps against No-Intro and Redump DAT catalogs.
package romident

import (
	"fmt"
	"io"
	"os"

	"github.com/retroforge/romident/analyzer"
	"github.com/retroforge/romident/archive"
	"github.com/retroforge/romident/dat"
	"github.com/retroforge/romident/hashing"
)

// ScanResult bundles everything one scan produced.
type ScanResult struct {
	// Analyzer is the console parser that accepted the file.
	Analyzer analyzer.Analyzer
	// Identification is the parsed header record.
	Identification *analyzer.Identification
	// Hashes are present when hashing was requested.
	Hashes *hashing.Hashes
	// Verdict is present when a DAT index was loaded for the console.
	Verdict *hashing.Verdict
	// ArchiveMember names the inner file when the scan unwrapped an
	// archive.
	ArchiveMember string
}

// Scanner drives the registry, hashing, and DAT matching for file scans.
// A Scanner is safe for concurrent use once its DAT indices are loaded.
type Scanner struct {
	registry *analyzer.Registry
	indices  map[string]*dat.Index
}

// NewScanner returns a scanner over the built-in analyzer registry.
func NewScanner() *Scanner {
	return &Scanner{
		registry: analyzer.NewRegistry(),
		indices:  make(map[string]*dat.Index),
	}
}

// Registry exposes the underlying analyzer registry.
func (s *Scanner) Registry() *analyzer.Registry {
	return s.registry
}

// LoadDATs parses the given DAT files and merges them into the index for
// the named console. Serials are normalized through the console's own
// game-code extraction. Loading is not safe concurrently with scanning.
func (s *Scanner) LoadDATs(shortName string, paths ...string) error {
	a := s.registry.ByShortName(shortName)
	if a == nil {
		return fmt.Errorf("unknown console %q", shortName)
	}

	files := make([]*dat.File, 0, len(paths))
	for _, path := range paths {
		parsed, err := dat.ParseFile(path)
		if err != nil {
			return err
		}
		files = append(files, parsed)
	}

	s.indices[a.ShortName()] = dat.NewIndex(files, a.ExtractDATGameCode)
	return nil
}

// Index returns the loaded DAT index for a console, or nil.
func (s *Scanner) Index(shortName string) *dat.Index {
	return s.indices[shortName]
}

// ScanFile analyzes the file at path. Archives are unwrapped first; the
// inner ROM is analyzed in memory. With opts.ComputeHashes set, the DAT
// digests are computed, and when a DAT index is loaded for the detected
// console the match verdict is filled in.
func (s *Scanner) ScanFile(path string, opts *analyzer.Options) (*ScanResult, error) {
	if opts == nil {
		opts = &analyzer.Options{}
	}

	if kind := archive.Detect(path); kind != archive.KindNone {
		member, err := archive.OpenROM(path, kind)
		if err != nil {
			return nil, err
		}
		memberOpts := *opts
		memberOpts.FilePath = "" // sibling lookups don't apply inside archives
		result, err := s.ScanReader(member.Reader(), &memberOpts)
		if err != nil {
			return nil, err
		}
		result.ArchiveMember = member.Name
		return result, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	fileOpts := *opts
	fileOpts.FilePath = path
	return s.ScanReader(f, &fileOpts)
}

// ScanReader analyzes an open stream.
func (s *Scanner) ScanReader(r io.ReadSeeker, opts *analyzer.Options) (*ScanResult, error) {
	if opts == nil {
		opts = &analyzer.Options{}
	}

	a, ident, err := s.registry.Identify(r, opts)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{Analyzer: a, Identification: ident}

	index := s.indices[a.ShortName()]
	if !opts.ComputeHashes && index == nil {
		return result, nil
	}

	if opts.ComputeHashes {
		hashes, err := hashing.ComputeForAnalyzer(a, r, nil)
		if err != nil {
			return nil, fmt.Errorf("hash: %w", err)
		}
		result.Hashes = hashes
	}

	if index != nil {
		verdict := hashing.Match(a, ident, result.Hashes, index)
		result.Verdict = &verdict
	}

	return result, nil
}
