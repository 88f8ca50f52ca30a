package iso9660

import (
	"strings"
)

// SystemCnf is the parsed SYSTEM.CNF boot configuration found in the root
// directory of PlayStation discs.
type SystemCnf struct {
	// BootPath is the BOOT (or BOOT2) executable path, e.g.
	// "cdrom:\SLUS_012.34;1".
	BootPath string
	// VMode is the video mode, when declared.
	VMode string
}

// ParseSystemCnf parses SYSTEM.CNF key=value lines. The first BOOT or BOOT2
// line wins.
func ParseSystemCnf(content string) (*SystemCnf, error) {
	cnf := &SystemCnf{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "BOOT", "BOOT2":
			if cnf.BootPath == "" {
				cnf.BootPath = value
			}
		case "VMODE":
			cnf.VMode = value
		}
	}
	if cnf.BootPath == "" {
		return nil, ErrBootMissing
	}
	return cnf, nil
}

// ps1SerialPrefixes are the catalog prefixes embedded in PS1 boot
// executable names.
var ps1SerialPrefixes = map[string]bool{
	"SLUS": true, "SCUS": true,
	"SLPS": true, "SCPS": true, "SLPM": true, "SIPS": true,
	"SLES": true, "SCES": true, "SCED": true,
	"SLKA": true, "SCKA": true,
	"PAPX": true, "PCPX": true,
}

// ExtractPS1Serial normalizes a boot path into a catalog serial: take the
// four-letter prefix, then concatenate the digits. "cdrom:\SLUS_012.34;1"
// becomes "SLUS-01234". Returns "" when the path does not carry a serial.
func ExtractPS1Serial(bootPath string) string {
	// The executable name follows the last path separator; some discs use
	// "cdrom:NAME" with no separator at all.
	name := bootPath
	if i := strings.LastIndexAny(name, "\\/:"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, ';'); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	if len(name) < 8 {
		return ""
	}

	prefix := strings.ToUpper(name[:4])
	if !ps1SerialPrefixes[prefix] {
		return ""
	}

	var digits strings.Builder
	for _, c := range name[4:] {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() < 5 {
		return ""
	}
	return prefix + "-" + digits.String()
}
