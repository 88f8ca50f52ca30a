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

package hashing

import (
	"strings"

	"github.com/retroforge/romident/analyzer"
	"github.com/retroforge/romident/dat"
)

// VerdictKind classifies a match outcome.
type VerdictKind int

const (
	// VerdictMatched is a unique catalog hit.
	VerdictMatched VerdictKind = iota
	// VerdictAmbiguous means several serial candidates and no hash to
	// disambiguate them.
	VerdictAmbiguous
	// VerdictUnmatched means nothing in the index fits.
	VerdictUnmatched
	// VerdictUnanalyzable wraps an analyzer failure surfaced to match
	// consumers.
	VerdictUnanalyzable
)

// String names the verdict kind.
func (k VerdictKind) String() string {
	switch k {
	case VerdictMatched:
		return "matched"
	case VerdictAmbiguous:
		return "ambiguous"
	case VerdictUnmatched:
		return "unmatched"
	default:
		return "unanalyzable"
	}
}

// MatchMethod records how a match was established.
type MatchMethod int

const (
	// MethodNone means no match.
	MethodNone MatchMethod = iota
	// MethodSerial means a unique serial hit.
	MethodSerial
	// MethodHash means a hash hit (SHA-1, MD5, or CRC32).
	MethodHash
	// MethodSerialHash means serial candidates disambiguated by hash.
	MethodSerialHash
)

// Verdict is the outcome of resolving analyzer output against a DAT index.
type Verdict struct {
	// Err carries the analyzer failure for VerdictUnanalyzable.
	Err error
	// Entry is the winning catalog entry for VerdictMatched.
	Entry *dat.Entry
	// Candidates lists the surviving serial candidates for
	// VerdictAmbiguous.
	Candidates []*dat.Entry
	Kind       VerdictKind
	Method     MatchMethod
	// Collisions counts extra games sharing the matched hash key.
	Collisions int
}

// CanonicalName returns the matched game's catalog name, or "".
func (v Verdict) CanonicalName() string {
	if v.Kind == VerdictMatched && v.Entry != nil {
		return v.Entry.Game.Name
	}
	return ""
}

// Unanalyzable wraps an analyzer error as a verdict.
func Unanalyzable(err error) Verdict {
	return Verdict{Kind: VerdictUnanalyzable, Err: err}
}

// Match resolves an identification plus its hashes against the console's
// DAT index:
//
//  1. A serial, when both sides have one, is tried first through the
//     analyzer's game-code extraction. A unique hit wins.
//  2. Several regional serial candidates are disambiguated by hash.
//  3. Otherwise hashes decide: SHA-1, then MD5, then CRC32.
//  4. Candidates but no hashes is Ambiguous; nothing at all is Unmatched.
//
// hashes may be nil when the caller skipped hashing.
func Match(a analyzer.Analyzer, ident *analyzer.Identification, hashes *Hashes, index *dat.Index) Verdict {
	if index == nil {
		return Verdict{Kind: VerdictUnmatched}
	}

	var candidates []*dat.Entry
	if ident != nil && ident.SerialNumber != "" && index.HasSerialCoverage() {
		candidates = index.LookupBySerial(a.ExtractDATGameCode(ident.SerialNumber))
		if len(candidates) == 1 {
			return Verdict{Kind: VerdictMatched, Entry: candidates[0], Method: MethodSerial}
		}
	}

	if hashes != nil {
		// Disambiguate serial candidates by hash before consulting the
		// whole index; Redump reuses catalog serials across the discs of a
		// multi-disc release.
		for _, c := range candidates {
			if entryHashMatches(c, hashes) {
				return Verdict{Kind: VerdictMatched, Entry: c, Method: MethodSerialHash}
			}
		}
		if entry, collisions := index.LookupByHashes(hashes.CRC32, hashes.MD5, hashes.SHA1); entry != nil {
			return Verdict{
				Kind:       VerdictMatched,
				Entry:      entry,
				Method:     MethodHash,
				Collisions: collisions,
			}
		}
	}

	if len(candidates) > 1 {
		return Verdict{Kind: VerdictAmbiguous, Candidates: candidates}
	}
	return Verdict{Kind: VerdictUnmatched}
}

// entryHashMatches reports whether any of the computed hashes equals the
// entry's stored one, most-specific first.
func entryHashMatches(entry *dat.Entry, hashes *Hashes) bool {
	rom := entry.ROM
	switch {
	case rom.SHA1 != "" && hashes.SHA1 != "":
		return strings.EqualFold(rom.SHA1, hashes.SHA1)
	case rom.MD5 != "" && hashes.MD5 != "":
		return strings.EqualFold(rom.MD5, hashes.MD5)
	case rom.CRC32 != "" && hashes.CRC32 != "":
		return strings.EqualFold(rom.CRC32, hashes.CRC32)
	default:
		return false
	}
}
