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

// Package archive unwraps ROMs stored inside compressed containers so the
// analyzers can probe the inner content. Zip, 7z, RAR, gzip, and xz are
// supported; the largest regular member is taken to be the ROM.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/nwaples/rardecode/v2"
	"github.com/ulikunitz/xz"
)

// ErrNoMembers is returned for an archive holding no regular files.
var ErrNoMembers = errors.New("archive: no regular members")

// Kind is a recognized container format.
type Kind int

// Supported container formats.
const (
	KindNone Kind = iota
	KindZip
	KindSevenZip
	KindRar
	KindGzip
	KindXz
)

// Detect sniffs a file's container format by content, falling back to the
// extension when content sensing is inconclusive.
func Detect(path string) Kind {
	if mt, err := mimetype.DetectFile(path); err == nil {
		switch mt.Extension() {
		case ".zip":
			return KindZip
		case ".7z":
			return KindSevenZip
		case ".rar":
			return KindRar
		case ".gz":
			return KindGzip
		case ".xz":
			return KindXz
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return KindZip
	case ".7z":
		return KindSevenZip
	case ".rar":
		return KindRar
	case ".gz":
		return KindGzip
	case ".xz":
		return KindXz
	default:
		return KindNone
	}
}

// Member is one extracted archive member, buffered for seekable analysis.
type Member struct {
	// Name is the member's path inside the archive, or the archive name
	// minus its compression suffix for single-stream formats.
	Name string
	// Data holds the decompressed content.
	Data []byte
}

// Reader returns a fresh ReadSeeker over the member content.
func (m *Member) Reader() *bytes.Reader {
	return bytes.NewReader(m.Data)
}

// OpenROM extracts the most plausible ROM member: the largest regular file
// for multi-member formats, the single stream for gzip/xz.
func OpenROM(path string, kind Kind) (*Member, error) {
	switch kind {
	case KindZip:
		return openZip(path)
	case KindSevenZip:
		return openSevenZip(path)
	case KindRar:
		return openRar(path)
	case KindGzip:
		return openStream(path, func(r io.Reader) (io.Reader, error) {
			gz, err := gzip.NewReader(r)
			if err != nil {
				return nil, err
			}
			return gz, nil
		}, ".gz")
	case KindXz:
		return openStream(path, func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		}, ".xz")
	default:
		return nil, fmt.Errorf("archive: unsupported container for %s", path)
	}
}

func openZip(path string) (*Member, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer func() { _ = zr.Close() }()

	var best *zip.File
	for _, f := range zr.File {
		if !f.Mode().IsRegular() || strings.HasPrefix(filepath.Base(f.Name), ".") {
			continue
		}
		if best == nil || f.UncompressedSize64 > best.UncompressedSize64 {
			best = f
		}
	}
	if best == nil {
		return nil, ErrNoMembers
	}

	rc, err := best.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip member %s: %w", best.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read zip member %s: %w", best.Name, err)
	}
	return &Member{Name: best.Name, Data: data}, nil
}

func openSevenZip(path string) (*Member, error) {
	sz, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open 7z: %w", err)
	}
	defer func() { _ = sz.Close() }()

	var best *sevenzip.File
	for _, f := range sz.File {
		if !f.Mode().IsRegular() || strings.HasPrefix(filepath.Base(f.Name), ".") {
			continue
		}
		if best == nil || f.UncompressedSize > best.UncompressedSize {
			best = f
		}
	}
	if best == nil {
		return nil, ErrNoMembers
	}

	rc, err := best.Open()
	if err != nil {
		return nil, fmt.Errorf("open 7z member %s: %w", best.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read 7z member %s: %w", best.Name, err)
	}
	return &Member{Name: best.Name, Data: data}, nil
}

func openRar(path string) (*Member, error) {
	rr, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open rar: %w", err)
	}
	defer func() { _ = rr.Close() }()

	// rardecode is stream-oriented: remember the largest member seen.
	var best *Member
	for {
		header, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("walk rar: %w", err)
		}
		if header.IsDir || strings.HasPrefix(filepath.Base(header.Name), ".") {
			continue
		}
		data, err := io.ReadAll(rr)
		if err != nil {
			return nil, fmt.Errorf("read rar member %s: %w", header.Name, err)
		}
		if best == nil || len(data) > len(best.Data) {
			best = &Member{Name: header.Name, Data: data}
		}
	}
	if best == nil {
		return nil, ErrNoMembers
	}
	return best, nil
}

// openStream handles single-stream compressors whose member name is the
// archive name without its suffix.
func openStream(path string, wrap func(io.Reader) (io.Reader, error), suffix string) (*Member, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r, err := wrap(f)
	if err != nil {
		return nil, fmt.Errorf("open %s stream: %w", suffix, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s stream: %w", suffix, err)
	}

	return &Member{
		Name: strings.TrimSuffix(filepath.Base(path), suffix),
		Data: data,
	}, nil
}
