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

// Package hashing computes the CRC32/MD5/SHA1 digests DAT matching needs and
// resolves analyzer output against a DAT index.
package hashing

import (
	"crypto/md5"  //nolint:gosec // DAT catalogs are keyed by MD5
	"crypto/sha1" //nolint:gosec // DAT catalogs are keyed by SHA-1
	"fmt"
	"hash/crc32"
	"io"
	"strings"

	"github.com/retroforge/romident/analyzer"
)

// chunkSize is the streaming buffer size; the orchestrator allocates exactly
// one such buffer per call.
const chunkSize = 64 * 1024

// Hashes holds the three digests of an optionally header-stripped,
// optionally normalized stream. Hex strings are uppercase, matching the
// index normalization.
type Hashes struct {
	CRC32    string
	MD5      string
	SHA1     string
	DataSize int64
}

// Compute hashes r from headerSize to the end in 64 KiB chunks, applying
// normalize (when non-nil) to each chunk before it reaches the hashers.
// progress, when non-nil, receives monotonically increasing byte counts.
func Compute(r io.ReadSeeker, headerSize int64, normalize analyzer.ChunkNormalizer, progress analyzer.ProgressFunc) (*Hashes, error) {
	fileSize, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if headerSize > fileSize {
		return nil, fmt.Errorf("header size %d exceeds file size %d", headerSize, fileSize)
	}
	if _, err := r.Seek(headerSize, io.SeekStart); err != nil {
		return nil, err
	}

	crc := crc32.NewIEEE()
	md5sum := md5.New() //nolint:gosec // catalog digest, not a security boundary
	sha := sha1.New()   //nolint:gosec // catalog digest, not a security boundary

	buf := make([]byte, chunkSize)
	dataSize := fileSize - headerSize
	var processed int64

	for processed < dataSize {
		n := int64(len(buf))
		if n > dataSize-processed {
			n = dataSize - processed
		}
		if _, err := io.ReadFull(r, buf[:n]); err != nil {
			return nil, err
		}
		chunk := buf[:n]
		if normalize != nil {
			normalize(chunk, processed)
		}
		_, _ = crc.Write(chunk)
		_, _ = md5sum.Write(chunk)
		_, _ = sha.Write(chunk)

		processed += n
		if progress != nil {
			progress(processed, dataSize)
		}
	}

	return &Hashes{
		CRC32:    fmt.Sprintf("%08X", crc.Sum32()),
		MD5:      strings.ToUpper(fmt.Sprintf("%x", md5sum.Sum(nil))),
		SHA1:     strings.ToUpper(fmt.Sprintf("%x", sha.Sum(nil))),
		DataSize: dataSize,
	}, nil
}

// ComputeForAnalyzer hashes r the way a's DAT capability prescribes: the
// header-skip offset comes from DATHeaderSize and the per-chunk rewrite
// from DATChunkNormalizer.
func ComputeForAnalyzer(a analyzer.Analyzer, r io.ReadSeeker, progress analyzer.ProgressFunc) (*Hashes, error) {
	fileSize, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	headerSize, err := a.DATHeaderSize(r, fileSize)
	if err != nil {
		return nil, err
	}
	normalize, err := a.DATChunkNormalizer(r, headerSize)
	if err != nil {
		return nil, err
	}
	return Compute(r, headerSize, normalize, progress)
}
