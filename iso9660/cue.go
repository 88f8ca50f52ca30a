package iso9660

import (
	"errors"
	"strconv"
	"strings"
)

// ErrEmptyCue is returned for a CUE sheet that references no files.
var ErrEmptyCue = errors.New("CUE sheet contains no FILE entries")

// CueSheet is a parsed CUE sheet.
type CueSheet struct {
	Files []CueFile
}

// CueFile is one FILE entry with its TRACK children.
type CueFile struct {
	Filename string
	FileType string
	Tracks   []CueTrack
}

// CueTrack is one TRACK entry.
type CueTrack struct {
	Mode   string
	Number int
}

// IsData reports whether the track holds data rather than audio.
func (t CueTrack) IsData() bool {
	return strings.HasPrefix(strings.ToUpper(t.Mode), "MODE")
}

// ParseCue parses CUE sheet text. INDEX, PREGAP, and REM lines are ignored;
// only the FILE/TRACK structure matters for identification.
func ParseCue(content string) (*CueSheet, error) {
	sheet := &CueSheet{}
	var current *CueFile

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "FILE "):
			if current != nil {
				sheet.Files = append(sheet.Files, *current)
			}
			filename, fileType := parseCueFileLine(line)
			current = &CueFile{Filename: filename, FileType: fileType}

		case strings.HasPrefix(upper, "TRACK "):
			if current == nil {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) < 3 {
				continue
			}
			number, err := strconv.Atoi(fields[1])
			if err != nil {
				continue
			}
			current.Tracks = append(current.Tracks, CueTrack{
				Number: number,
				Mode:   fields[2],
			})
		}
	}
	if current != nil {
		sheet.Files = append(sheet.Files, *current)
	}

	if len(sheet.Files) == 0 {
		return nil, ErrEmptyCue
	}
	return sheet, nil
}

// parseCueFileLine splits `FILE "name.bin" BINARY` into name and type. The
// filename may be quoted or a single bare token.
func parseCueFileLine(line string) (filename, fileType string) {
	rest := strings.TrimSpace(line[len("FILE"):])
	if strings.HasPrefix(rest, `"`) {
		if end := strings.Index(rest[1:], `"`); end >= 0 {
			return rest[1 : 1+end], strings.TrimSpace(rest[end+2:])
		}
		return strings.Trim(rest, `"`), ""
	}
	name, rest, _ := strings.Cut(rest, " ")
	return name, strings.TrimSpace(rest)
}

// TrackCounts tallies the sheet's total, data, and audio tracks.
func (s *CueSheet) TrackCounts() (total, data, audio int) {
	for _, f := range s.Files {
		for _, t := range f.Tracks {
			total++
			if t.IsData() {
				data++
			} else {
				audio++
			}
		}
	}
	return total, data, audio
}

// FirstDataFile returns the filename holding the first data track.
func (s *CueSheet) FirstDataFile() (string, bool) {
	for _, f := range s.Files {
		for _, t := range f.Tracks {
			if t.IsData() {
				return f.Filename, true
			}
		}
	}
	// A sheet with FILE entries but no explicit data track falls back to
	// the first file.
	if len(s.Files) > 0 {
		return s.Files[0].Filename, true
	}
	return "", false
}
