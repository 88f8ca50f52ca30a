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
	"io"
	"strings"
)

// Registry holds the analyzer set and dispatches streams to the analyzer
// whose format probe accepts them. Analyzers are stateless and process-long;
// a Registry may be shared across goroutines without synchronization.
type Registry struct {
	analyzers []Analyzer
}

// NewRegistry returns a registry with every built-in analyzer registered in
// probe order: analyzers with long, specific magic prefixes first (NCSD,
// NES\x1A, SEGA, CD sync/CD001), logo-detected formats next (NDS, GBA, GB),
// and sum-check-only formats last (SNES, SMS), so a weak probe never shadows
// a strong one.
func NewRegistry() *Registry {
	return &Registry{
		analyzers: []Analyzer{
			New3DSAnalyzer(),
			NewNESAnalyzer(),
			NewGenesisAnalyzer(),
			NewN64Analyzer(),
			NewPS1Analyzer(),
			NewNDSAnalyzer(),
			NewGBAAnalyzer(),
			NewGBAnalyzer(),
			NewSNESAnalyzer(),
			NewSMSAnalyzer(),
		},
	}
}

// NewRegistryWith returns a registry over an explicit analyzer sequence, in
// the given order. Callers are responsible for ordering probes most-specific
// first.
func NewRegistryWith(analyzers ...Analyzer) *Registry {
	return &Registry{analyzers: analyzers}
}

// Analyzers returns the registered analyzers in probe order.
func (reg *Registry) Analyzers() []Analyzer {
	return reg.analyzers
}

// ByShortName returns the analyzer whose short name or folder alias matches
// name, case-insensitively.
func (reg *Registry) ByShortName(name string) Analyzer {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, a := range reg.analyzers {
		if a.ShortName() == name {
			return a
		}
	}
	for _, a := range reg.analyzers {
		for _, f := range a.FolderNames() {
			if f == name {
				return a
			}
		}
	}
	return nil
}

// Identify probes the registered analyzers in order and analyzes the stream
// with the first one whose CanHandle accepts it.
//
// A probe may admit false positives that the full parse rejects, so
// KindInvalidFormat and KindCorruptedHeader results move on to the next
// analyzer. KindTooSmall, KindUnsupported, and I/O failures are final: no
// later analyzer will accept a truncated file, and an unsupported variant
// has already been recognized.
func (reg *Registry) Identify(r io.ReadSeeker, opts *Options) (Analyzer, *Identification, error) {
	if opts == nil {
		opts = &Options{}
	}
	for _, a := range reg.analyzers {
		if !a.CanHandle(r) {
			continue
		}
		if _, err := r.Seek(0, io.SeekStart); err != nil {
			return nil, nil, IoError(err)
		}
		id, err := a.Analyze(r, opts)
		if err != nil {
			switch KindOf(err) {
			case KindInvalidFormat, KindCorruptedHeader:
				continue
			default:
				return a, nil, err
			}
		}
		return a, id, nil
	}
	return nil, nil, InvalidFormatError("no analyzer recognizes this file")
}
