package hashing

import (
	"testing"

	"github.com/retroforge/romident/analyzer"
	"github.com/retroforge/romident/dat"
)

func makeN64Index() *dat.Index {
	file := &dat.File{
		Name: "Nintendo - Nintendo 64",
		Games: []dat.Game{
			{Name: "Super Mario 64 (USA)", ROMs: []dat.ROM{{
				Name: "Super Mario 64 (USA).z64", CRC32: "635A2BFF", Serial: "NSME",
			}}},
			{Name: "Super Mario 64 (Japan)", ROMs: []dat.ROM{{
				Name: "Super Mario 64 (Japan).z64", CRC32: "4EAB3152", Serial: "NSMJ",
			}}},
		},
	}
	return dat.NewIndex([]*dat.File{file}, analyzer.DefaultGameCode)
}

func TestMatchBySerial(t *testing.T) {
	a := analyzer.NewN64Analyzer()
	ident := analyzer.NewIdentification("Nintendo 64")
	ident.SerialNumber = "NUS-NSME-USA"

	verdict := Match(a, ident, nil, makeN64Index())
	if verdict.Kind != VerdictMatched {
		t.Fatalf("Kind = %v, want matched", verdict.Kind)
	}
	if verdict.Method != MethodSerial {
		t.Errorf("Method = %v, want serial", verdict.Method)
	}
	if verdict.CanonicalName() != "Super Mario 64 (USA)" {
		t.Errorf("CanonicalName = %q", verdict.CanonicalName())
	}
}

func TestMatchHashFallback(t *testing.T) {
	a := analyzer.NewN64Analyzer()
	ident := analyzer.NewIdentification("Nintendo 64") // no serial

	verdict := Match(a, ident, &Hashes{CRC32: "4EAB3152"}, makeN64Index())
	if verdict.Kind != VerdictMatched {
		t.Fatalf("Kind = %v, want matched", verdict.Kind)
	}
	if verdict.Method != MethodHash {
		t.Errorf("Method = %v, want hash", verdict.Method)
	}
	if verdict.CanonicalName() != "Super Mario 64 (Japan)" {
		t.Errorf("CanonicalName = %q", verdict.CanonicalName())
	}
}

func TestMatchMultiDiscSerialDisambiguatedByHash(t *testing.T) {
	// All three discs share one catalog serial; the hash picks the disc.
	file := &dat.File{
		Name: "Sony - PlayStation",
		Games: []dat.Game{
			{Name: "Final Fantasy VII (USA) (Disc 1)", ROMs: []dat.ROM{{
				Name: "d1.bin", CRC32: "11111111", Serial: "SCUS-94163",
			}}},
			{Name: "Final Fantasy VII (USA) (Disc 2)", ROMs: []dat.ROM{{
				Name: "d2.bin", CRC32: "22222222", Serial: "SCUS-94163",
			}}},
			{Name: "Final Fantasy VII (USA) (Disc 3)", ROMs: []dat.ROM{{
				Name: "d3.bin", CRC32: "33333333", Serial: "SCUS-94163",
			}}},
		},
	}
	a := analyzer.NewPS1Analyzer()
	index := dat.NewIndex([]*dat.File{file}, a.ExtractDATGameCode)

	ident := analyzer.NewIdentification("PlayStation")
	ident.SerialNumber = "SCUS-94163"

	verdict := Match(a, ident, &Hashes{CRC32: "22222222"}, index)
	if verdict.Kind != VerdictMatched {
		t.Fatalf("Kind = %v, want matched", verdict.Kind)
	}
	if verdict.Method != MethodSerialHash {
		t.Errorf("Method = %v, want serial+hash", verdict.Method)
	}
	if verdict.CanonicalName() != "Final Fantasy VII (USA) (Disc 2)" {
		t.Errorf("CanonicalName = %q", verdict.CanonicalName())
	}

	// Without hashes the candidates stay ambiguous.
	verdict = Match(a, ident, nil, index)
	if verdict.Kind != VerdictAmbiguous {
		t.Fatalf("Kind = %v, want ambiguous", verdict.Kind)
	}
	if len(verdict.Candidates) != 3 {
		t.Errorf("Candidates = %d, want 3", len(verdict.Candidates))
	}
}

func TestMatchUnmatched(t *testing.T) {
	a := analyzer.NewN64Analyzer()
	ident := analyzer.NewIdentification("Nintendo 64")
	ident.SerialNumber = "NUS-ZZZZ-USA"

	verdict := Match(a, ident, &Hashes{CRC32: "00000000"}, makeN64Index())
	if verdict.Kind != VerdictUnmatched {
		t.Errorf("Kind = %v, want unmatched", verdict.Kind)
	}
}

func TestMatchNilIndex(t *testing.T) {
	a := analyzer.NewN64Analyzer()
	verdict := Match(a, analyzer.NewIdentification("Nintendo 64"), nil, nil)
	if verdict.Kind != VerdictUnmatched {
		t.Errorf("Kind = %v, want unmatched", verdict.Kind)
	}
}

func TestUnanalyzableVerdict(t *testing.T) {
	err := analyzer.UnsupportedError("encrypted content")
	verdict := Unanalyzable(err)
	if verdict.Kind != VerdictUnanalyzable {
		t.Errorf("Kind = %v", verdict.Kind)
	}
	if verdict.Err == nil {
		t.Error("Err not carried")
	}
	if verdict.CanonicalName() != "" {
		t.Error("CanonicalName should be empty")
	}
}
