package downloader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

func eucKR(t *testing.T, s string) string {
	t.Helper()
	b, err := korean.EUCKR.NewEncoder().String(s)
	require.NoError(t, err)
	return b
}

func TestFromExtendedUTF8(t *testing.T) {
	c := FromExtended(`attachment; filename*=UTF-8''%EC%B0%A8%EB%B6%80.hwp`)
	require.True(t, c.OK(), c.Err)
	assert.Equal(t, "차부.hwp", c.Name)
	assert.Equal(t, SourceExtended, c.Source)
}

func TestFromExtendedDeclaredEUCKR(t *testing.T) {
	// 공고 in EUC-KR is B0 F8 B0 ED
	c := FromExtended(`attachment; filename*=euc-kr''%B0%F8%B0%ED.pdf`)
	require.True(t, c.OK(), c.Err)
	assert.Equal(t, "공고.pdf", c.Name)
}

func TestFromExtendedRejectsInvalidUTF8(t *testing.T) {
	c := FromExtended(`attachment; filename*=UTF-8''%B0%F8.pdf`)
	assert.False(t, c.OK())
}

func TestFromPlainEUCKROctets(t *testing.T) {
	cd := `attachment; filename="` + eucKR(t, "사업공고 안내.hwp") + `"`
	c := FromPlain(cd)
	require.True(t, c.OK(), c.Err)
	assert.Equal(t, "사업공고 안내.hwp", c.Name)
}

func TestFromPlainLatin1Mojibake(t *testing.T) {
	// The EUC-KR octets arrived already widened to Latin-1 runes.
	var widened strings.Builder
	for _, b := range []byte(eucKR(t, "신청서.hwp")) {
		widened.WriteRune(rune(b))
	}
	c := FromPlain(`attachment; filename="` + widened.String() + `"`)
	require.True(t, c.OK(), c.Err)
	assert.Equal(t, "신청서.hwp", c.Name)
}

func TestFromPlainLatin1Literal(t *testing.T) {
	c := FromPlain(`attachment; filename="±¹¹®.pdf"`)
	require.True(t, c.OK(), c.Err)
	assert.Equal(t, "국문.pdf", c.Name)
}

func TestFromPlainUTF8AndPlus(t *testing.T) {
	c := FromPlain(`attachment; filename="붙임+1.pdf"`)
	require.True(t, c.OK(), c.Err)
	assert.Equal(t, "붙임 1.pdf", c.Name)
}

func TestFromURL(t *testing.T) {
	c := FromURL("https://example.com/files/report_final.pdf?token=xyz")
	require.True(t, c.OK(), c.Err)
	assert.Equal(t, "report_final.pdf", c.Name)

	assert.False(t, FromURL("https://example.com/download?id=3").OK())
}

func TestChooseNamePrefersExtended(t *testing.T) {
	cd := `attachment; filename="fallback.hwp"; filename*=UTF-8''%EC%B0%A8%EB%B6%80.hwp`
	c, tried := ChooseName(cd, "https://example.com/x.bin", "", 1)
	assert.Equal(t, "차부.hwp", c.Name)
	assert.Len(t, tried, 1)
}

func TestChooseNameDisplayNameBeforeFallback(t *testing.T) {
	c, _ := ChooseName("", "https://example.com/download?id=3", "공고문.hwp", 2)
	assert.Equal(t, SourceDisplay, c.Source)
	assert.Equal(t, "공고문.hwp", c.Name)
}

func TestChooseNameFallback(t *testing.T) {
	c, tried := ChooseName("", "https://example.com/download?id=3", "첨부파일", 2)
	assert.Equal(t, "attachment_2.unknown", c.Name)
	assert.Equal(t, SourceFallback, c.Source)
	assert.Len(t, tried, 5)
}

func TestParseDispositionQuotedSemicolon(t *testing.T) {
	p := parseDisposition(`attachment; filename="a;b \"c\".pdf"; size=10`)
	assert.Equal(t, `a;b "c".pdf`, p["filename"])
	assert.Equal(t, "10", p["size"])
}
