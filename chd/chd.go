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

// Package chd reads CHD (Compressed Hunks of Data) V5 disc images, MAME's
// compressed disc format. Hunks are decompressed one at a time; the package
// never materializes the whole image.
package chd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Common errors.
var (
	ErrInvalidMagic       = errors.New("chd: invalid magic")
	ErrInvalidHeader      = errors.New("chd: invalid header")
	ErrUnsupportedVersion = errors.New("chd: unsupported version")
	ErrUnsupportedCodec   = errors.New("chd: unsupported codec")
	ErrInvalidHunk        = errors.New("chd: invalid hunk reference")
	ErrDecompress         = errors.New("chd: decompress failed")
	ErrInvalidMetadata    = errors.New("chd: invalid metadata")
)

// chdMagic is the "MComprHD" container magic.
var chdMagic = []byte("MComprHD")

// Format limits; far above anything a real disc image produces.
const (
	maxHunks           = 1 << 24
	maxCompressedMap   = 1 << 26
	maxMetadataEntries = 256
	maxMetadataLen     = 1 << 20

	headerSizeV5 = 124

	// cdUnitBytes is a CD unit inside a CHD: a raw 2352-byte sector plus
	// 96 bytes of subchannel.
	cdUnitBytes = 2448
	// cdDataOffset is where Mode 2 Form 1 user data starts within a raw
	// sector.
	cdDataOffset = 24
)

// Header carries the V5 header fields the reader needs.
type Header struct {
	Compressors  [4]uint32
	LogicalBytes uint64
	MapOffset    uint64
	MetaOffset   uint64
	HunkBytes    uint32
	UnitBytes    uint32
	Version      uint32
}

// NumHunks returns the hunk count implied by the logical size.
func (h *Header) NumHunks() uint32 {
	if h.HunkBytes == 0 {
		return 0
	}
	return uint32((h.LogicalBytes + uint64(h.HunkBytes) - 1) / uint64(h.HunkBytes))
}

// CHD is an open V5 image.
type CHD struct {
	r       io.ReadSeeker
	header  *Header
	hunks   *hunkMap
	tracks  []Track
	// lastHunk memoizes the most recently decompressed hunk so sequential
	// sector reads stay one-buffer.
	lastHunk     []byte
	lastHunkIdx  uint32
	haveLastHunk bool
}

// IsCHD reports whether the first bytes carry the CHD magic.
func IsCHD(head []byte) bool {
	return len(head) >= 8 && string(head[:8]) == string(chdMagic)
}

// Open parses the header, hunk map, and track metadata of a CHD stream.
// Versions other than 5 are recognized but not read.
func Open(r io.ReadSeeker) (*CHD, error) {
	header, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	hunks, err := newHunkMap(r, header)
	if err != nil {
		return nil, err
	}

	c := &CHD{r: r, header: header, hunks: hunks}

	if header.MetaOffset > 0 {
		// Metadata failures are not fatal; the image stays readable
		// without track information.
		if entries, err := readMetadata(r, header.MetaOffset); err == nil {
			if tracks, err := parseTracks(entries); err == nil {
				c.tracks = tracks
			}
		}
	}

	return c, nil
}

// parseHeader reads and validates the container header.
func parseHeader(r io.ReadSeeker) (*Header, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, headerSizeV5)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if !IsCHD(buf) {
		return nil, ErrInvalidMagic
	}

	headerSize := binary.BigEndian.Uint32(buf[8:12])
	version := binary.BigEndian.Uint32(buf[12:16])
	if version != 5 {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedVersion, version)
	}
	if headerSize != headerSizeV5 {
		return nil, fmt.Errorf("%w: V5 header size %d", ErrInvalidHeader, headerSize)
	}

	h := &Header{
		Version:      version,
		LogicalBytes: binary.BigEndian.Uint64(buf[0x20:0x28]),
		MapOffset:    binary.BigEndian.Uint64(buf[0x28:0x30]),
		MetaOffset:   binary.BigEndian.Uint64(buf[0x30:0x38]),
		HunkBytes:    binary.BigEndian.Uint32(buf[0x38:0x3C]),
		UnitBytes:    binary.BigEndian.Uint32(buf[0x3C:0x40]),
	}
	for i := range h.Compressors {
		h.Compressors[i] = binary.BigEndian.Uint32(buf[0x10+i*4 : 0x14+i*4])
	}

	if h.HunkBytes == 0 || h.NumHunks() > maxHunks {
		return nil, fmt.Errorf("%w: hunk geometry", ErrInvalidHeader)
	}
	return h, nil
}

// Header returns the parsed header.
func (c *CHD) Header() *Header { return c.header }

// Tracks returns the CD track list from the metadata chain, possibly empty.
func (c *CHD) Tracks() []Track { return c.tracks }

// UnitBytes returns the stored unit size, defaulting to a CD unit.
func (c *CHD) UnitBytes() int64 {
	if c.header.UnitBytes == 0 {
		return cdUnitBytes
	}
	return int64(c.header.UnitBytes)
}

// ReadHunk decompresses hunk index, reusing the one-hunk memo when the same
// hunk is requested again.
func (c *CHD) ReadHunk(index uint32) ([]byte, error) {
	if c.haveLastHunk && index == c.lastHunkIdx {
		return c.lastHunk, nil
	}
	data, err := c.hunks.readHunk(c.r, index)
	if err != nil {
		return nil, err
	}
	c.lastHunk = data
	c.lastHunkIdx = index
	c.haveLastHunk = true
	return data, nil
}

// ReadSector fills buf with the 2048 user-data bytes of CD sector n.
// Sector n lives at byte n*2448 of the decompressed stream; user data
// starts 24 bytes into the raw sector.
func (c *CHD) ReadSector(n int64, buf []byte) error {
	unit := c.UnitBytes()
	byteOffset := n * unit
	hunkBytes := int64(c.header.HunkBytes)

	hunkIdx := byteOffset / hunkBytes
	inHunk := byteOffset % hunkBytes

	hunk, err := c.ReadHunk(uint32(hunkIdx))
	if err != nil {
		return err
	}

	start := inHunk + cdDataOffset
	if start+int64(len(buf)) > int64(len(hunk)) {
		return fmt.Errorf("%w: sector %d crosses hunk boundary", ErrInvalidHunk, n)
	}
	copy(buf, hunk[start:start+int64(len(buf))])
	return nil
}

// SectorCount returns how many CD units the image holds.
func (c *CHD) SectorCount() int64 {
	return int64(c.header.LogicalBytes) / c.UnitBytes()
}
