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

// Package binary provides explicit-endian field access and header text
// helpers shared by the ROM analyzers. There is deliberately no
// native-endian read here: every ROM field is read with a stated byte order.
package binary

import (
	"encoding/binary"
	"io"
	"strings"
)

// ReadAt seeks r to off and fills buf completely.
func ReadAt(r io.ReadSeeker, off int64, buf []byte) error {
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return err
	}
	_, err := io.ReadFull(r, buf)
	return err
}

// ReadBytesAt reads n bytes from r at off.
func ReadBytesAt(r io.ReadSeeker, off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := ReadAt(r, off, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// U16LE returns the little-endian uint16 at off in buf.
func U16LE(buf []byte, off int) uint16 { return binary.LittleEndian.Uint16(buf[off:]) }

// U16BE returns the big-endian uint16 at off in buf.
func U16BE(buf []byte, off int) uint16 { return binary.BigEndian.Uint16(buf[off:]) }

// U32LE returns the little-endian uint32 at off in buf.
func U32LE(buf []byte, off int) uint32 { return binary.LittleEndian.Uint32(buf[off:]) }

// U32BE returns the big-endian uint32 at off in buf.
func U32BE(buf []byte, off int) uint32 { return binary.BigEndian.Uint32(buf[off:]) }

// U64LE returns the little-endian uint64 at off in buf.
func U64LE(buf []byte, off int) uint64 { return binary.LittleEndian.Uint64(buf[off:]) }

// U64BE returns the big-endian uint64 at off in buf.
func U64BE(buf []byte, off int) uint64 { return binary.BigEndian.Uint64(buf[off:]) }

// CleanString converts a null-terminated field to a string, stopping at the
// first null byte, dropping non-printable bytes, and trimming whitespace.
func CleanString(b []byte) string {
	end := len(b)
	for i, c := range b {
		if c == 0 {
			end = i
			break
		}
	}
	return ExtractPrintable(b[:end])
}

// ExtractPrintable keeps only printable ASCII (0x20-0x7E) and trims the
// surrounding whitespace. CleanString applies it to the bytes before the
// first null.
func ExtractPrintable(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c >= 0x20 && c <= 0x7E {
			sb.WriteByte(c)
		}
	}
	return strings.TrimSpace(sb.String())
}

// PrintableFixed maps a fixed-width field to a string, replacing
// non-printable bytes with spaces before trimming. Unlike CleanString it does
// not stop at nulls, which suits headers padded with 0x00 or 0xFF.
func PrintableFixed(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c >= 0x20 && c <= 0x7E {
			sb.WriteByte(c)
		} else {
			sb.WriteByte(' ')
		}
	}
	return strings.TrimSpace(sb.String())
}

// AllZero reports whether every byte of b is zero.
func AllZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// FindBytes returns the offset of needle in haystack, or -1.
func FindBytes(haystack, needle []byte) int {
	if len(needle) > len(haystack) {
		return -1
	}
outer:
	for i := 0; i <= len(haystack)-len(needle); i++ {
		for j := range needle {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
