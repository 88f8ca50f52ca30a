package dat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLogiqx = `<?xml version="1.0"?>
<!DOCTYPE datafile SYSTEM "http://www.logiqx.com/Dats/datafile.dtd">
<datafile>
	<header>
		<name>Nintendo - Super Nintendo Entertainment System</name>
		<description>Nintendo - Super Nintendo Entertainment System (20240101-000000)</description>
		<version>20240101-000000</version>
	</header>
	<game name="Super Mario World (USA)">
		<rom name="Super Mario World (USA).sfc" size="524288" crc="b19ed489" sha1="6b47bb75d16514b6a476aa0c73a683a2a4c18765"/>
	</game>
	<game name="The Legend of Zelda - A Link to the Past (USA)">
		<rom name="The Legend of Zelda - A Link to the Past (USA).sfc" size="1048576" crc="777aac2f" sha1="59b4b1730a3e2ae4b30efc9c1e0d31986b6c4b44"/>
	</game>
</datafile>`

const sampleClrMamePro = `clrmamepro (
	name "Nintendo - Nintendo Entertainment System"
	description "Nintendo - Nintendo Entertainment System"
	version 20141025-064058
)

game (
	name "'89 Dennou Kyuusei Uranai (Japan)"
	description "'89 Dennou Kyuusei Uranai (Japan)"
	rom ( name "'89 Dennou Kyuusei Uranai (Japan).nes" size 262144 crc BA58ED29 md5 4187A797E33BC96A96993220DA6F09F7 sha1 56FE858D1035DCE4B68520F457A0858BAE7BB16D )
)

game (
	name "10-Yard Fight (USA, Europe)"
	description "10-Yard Fight (USA, Europe)"
	rom ( name "10-Yard Fight (USA, Europe).nes" size 40960 crc 3D564757 md5 BD2C15391B0641D43A35E83F5FCE073A sha1 016818BF6BAAF779F4F5C1658880B81D23EA40CA )
)
`

func TestParseLogiqx(t *testing.T) {
	parsed, err := Parse(strings.NewReader(sampleLogiqx))
	require.NoError(t, err)

	assert.Equal(t, "Nintendo - Super Nintendo Entertainment System", parsed.Name)
	assert.Equal(t, "20240101-000000", parsed.Version)
	require.Len(t, parsed.Games, 2)

	smw := parsed.Games[0]
	assert.Equal(t, "Super Mario World (USA)", smw.Name)
	require.Len(t, smw.ROMs, 1)
	assert.Equal(t, "Super Mario World (USA).sfc", smw.ROMs[0].Name)
	assert.Equal(t, uint64(524288), smw.ROMs[0].Size)
	assert.Equal(t, "B19ED489", smw.ROMs[0].CRC32)
	assert.Equal(t, "6B47BB75D16514B6A476AA0C73A683A2A4C18765", smw.ROMs[0].SHA1)
}

func TestParseLogiqxWithSerial(t *testing.T) {
	xml := `<?xml version="1.0"?>
<datafile>
	<header><name>Test</name><version>1</version></header>
	<game name="Test Game">
		<rom name="Test Game.bin" size="1024" crc="deadbeef" serial="SLUS-00001"/>
	</game>
</datafile>`

	parsed, err := Parse(strings.NewReader(xml))
	require.NoError(t, err)
	require.Len(t, parsed.Games, 1)
	assert.Equal(t, "SLUS-00001", parsed.Games[0].ROMs[0].Serial)
}

func TestParseLogiqxMultiTrackGame(t *testing.T) {
	xml := `<?xml version="1.0"?>
<datafile>
	<header><name>Sony - PlayStation</name><version>1</version></header>
	<game name="Example Game (USA)">
		<rom name="Example Game (USA) (Track 1).bin" size="500000000" crc="11111111" sha1="AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"/>
		<rom name="Example Game (USA) (Track 2).bin" size="30000000" crc="22222222" sha1="BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"/>
	</game>
</datafile>`

	parsed, err := Parse(strings.NewReader(xml))
	require.NoError(t, err)
	require.Len(t, parsed.Games, 1)
	assert.Len(t, parsed.Games[0].ROMs, 2)

	// Every track indexes to the same game record.
	idx := NewIndex([]*File{parsed}, nil)
	e1, _ := idx.LookupByHashes("11111111", "", "")
	e2, _ := idx.LookupByHashes("22222222", "", "")
	require.NotNil(t, e1)
	require.NotNil(t, e2)
	assert.Same(t, e1.Game, e2.Game)
}

func TestParseEmptyLogiqx(t *testing.T) {
	_, err := Parse(strings.NewReader(`<?xml version="1.0"?><datafile></datafile>`))
	assert.ErrorIs(t, err, ErrEmptyDat)
}

func TestParseClrMamePro(t *testing.T) {
	parsed, err := Parse(strings.NewReader(sampleClrMamePro))
	require.NoError(t, err)

	assert.Equal(t, "Nintendo - Nintendo Entertainment System", parsed.Name)
	assert.Equal(t, "20141025-064058", parsed.Version)
	require.Len(t, parsed.Games, 2)

	g0 := parsed.Games[0]
	assert.Equal(t, "'89 Dennou Kyuusei Uranai (Japan)", g0.Name)
	require.Len(t, g0.ROMs, 1)
	assert.Equal(t, uint64(262144), g0.ROMs[0].Size)
	assert.Equal(t, "BA58ED29", g0.ROMs[0].CRC32)
	assert.Equal(t, "4187A797E33BC96A96993220DA6F09F7", g0.ROMs[0].MD5)
	assert.Equal(t, "56FE858D1035DCE4B68520F457A0858BAE7BB16D", g0.ROMs[0].SHA1)
}

func TestParseClrMameProLibRetroEnhanced(t *testing.T) {
	text := `clrmamepro (
	name "Nintendo - Nintendo 64"
	version 20240101-000000
)

game (
	name "GoldenEye 007 (USA)"
	region "USA"
	serial "NGEE"
	releaseyear "1997"
	releasemonth "8"
	releaseday "25"
	rom ( name "GoldenEye 007 (USA).z64" size 12582912 crc DBC23B14 serial "NGEE" )
)

game (
	name "Homebrew Game (World)"
	rom ( name "Homebrew Game (World).z64" size 1048576 crc 11223344 )
)
`
	parsed, err := Parse(strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, parsed.Games, 2)

	ge := parsed.Games[0]
	assert.Equal(t, "USA", ge.Region)
	assert.Equal(t, "NGEE", ge.ROMs[0].Serial)
	assert.Equal(t, "1997-08-25", ge.ReleaseDate)
	assert.Equal(t, "DBC23B14", ge.ROMs[0].CRC32)

	hb := parsed.Games[1]
	assert.Empty(t, hb.Region)
	assert.Empty(t, hb.ROMs[0].Serial)
}

func TestClrMameProGameSerialPropagation(t *testing.T) {
	text := `clrmamepro (
	name "Test"
	version 1
)

game (
	name "Test Game (USA)"
	serial "ABCD"
	rom ( name "Test Game (USA).bin" size 1024 crc DEADBEEF )
)
`
	parsed, err := Parse(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, "ABCD", parsed.Games[0].ROMs[0].Serial)
}

func TestParseEmptyClrMamePro(t *testing.T) {
	_, err := Parse(strings.NewReader("game (\n)\n"))
	assert.ErrorIs(t, err, ErrEmptyDat)
}

func TestTokenizeROMLine(t *testing.T) {
	tokens := tokenizeROMLine(`name "Game (USA, Europe).sfc" size 524288 crc ABCD1234`)
	assert.Equal(t, []string{"name", "Game (USA, Europe).sfc", "size", "524288", "crc", "ABCD1234"}, tokens)
}

func TestParseAutoDetection(t *testing.T) {
	xml, err := Parse(strings.NewReader(sampleLogiqx))
	require.NoError(t, err)
	assert.NotEmpty(t, xml.Games)

	clr, err := Parse(strings.NewReader(sampleClrMamePro))
	require.NoError(t, err)
	assert.NotEmpty(t, clr.Games)

	// Leading whitespace must not confuse the detector.
	padded, err := Parse(strings.NewReader("\n\n  " + sampleLogiqx))
	require.NoError(t, err)
	assert.NotEmpty(t, padded.Games)
}
