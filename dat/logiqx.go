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

package dat

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// parseLogiqx streams a Logiqx XML <datafile> token by token: header text
// elements fill the File, and each <rom> element becomes one ROM record of
// the enclosing <game>. A DTD is tolerated but never fetched.
func parseLogiqx(r io.Reader) (*File, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false

	file := &File{}
	var currentGame *Game
	var currentTag string
	inHeader := false

	for {
		token, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("logiqx: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "header":
				inHeader = true
			case "game", "machine":
				game := Game{}
				for _, attr := range t.Attr {
					if attr.Name.Local == "name" {
						game.Name = attr.Value
					}
				}
				currentGame = &game
			case "rom":
				if currentGame != nil {
					currentGame.ROMs = append(currentGame.ROMs, romFromAttrs(t.Attr))
				}
			default:
				currentTag = t.Name.Local
			}

		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				break
			}
			if inHeader {
				switch currentTag {
				case "name":
					file.Name = text
				case "description":
					file.Description = text
				case "version":
					file.Version = text
				}
			} else if currentGame != nil {
				switch currentTag {
				case "description":
					currentGame.Description = text
				case "region":
					currentGame.Region = text
				case "serial":
					currentGame.Serial = text
				case "year":
					currentGame.ReleaseDate = text
				}
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "header":
				inHeader = false
			case "game", "machine":
				if currentGame != nil {
					file.Games = append(file.Games, *currentGame)
					currentGame = nil
				}
			default:
				currentTag = ""
			}
		}
	}

	if file.Name == "" && len(file.Games) == 0 {
		return nil, fmt.Errorf("%w (logiqx)", ErrEmptyDat)
	}
	return file, nil
}

// romFromAttrs builds a ROM record from <rom> attributes. Hashes are
// normalized to uppercase here, the same normalization lookups apply.
func romFromAttrs(attrs []xml.Attr) ROM {
	var rom ROM
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "name":
			rom.Name = attr.Value
		case "size":
			if size, err := strconv.ParseUint(attr.Value, 10, 64); err == nil {
				rom.Size = size
			}
		case "crc":
			rom.CRC32 = strings.ToUpper(attr.Value)
		case "md5":
			rom.MD5 = strings.ToUpper(attr.Value)
		case "sha1":
			rom.SHA1 = strings.ToUpper(attr.Value)
		case "serial":
			rom.Serial = attr.Value
		}
	}
	return rom
}
