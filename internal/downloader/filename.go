package downloader

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/law-makers/harvest/pkg/models"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
)

// NameSource tells which step of the filename chain produced a name
type NameSource string

const (
	SourceExtended NameSource = "filename*"
	SourcePlain    NameSource = "filename"
	SourceURL      NameSource = "url"
	SourceDisplay  NameSource = "display_name"
	SourceFallback NameSource = "fallback"
)

// Candidate is the result of one filename recovery attempt
type Candidate struct {
	Name   string
	Source NameSource
	Err    error
}

// OK reports whether the attempt produced a usable name
func (c Candidate) OK() bool {
	return c.Err == nil && strings.TrimSpace(c.Name) != ""
}

var errNoParam = errors.New("parameter not present")

// plainDecoders are tried in order on the raw bytes of a plain filename parameter.
// x/text's EUC-KR table already covers the CP949 extension; the CP949 step
// goes through the WHATWG label and resolves to the same table.
var plainDecoders = []struct {
	label string
	enc   encoding.Encoding
}{
	{"utf-8", unicode.UTF8},
	{"euc-kr", korean.EUCKR},
	{"cp949", mustHTMLIndex("windows-949")},
}

func mustHTMLIndex(name string) encoding.Encoding {
	enc, err := htmlindex.Get(name)
	if err != nil {
		panic(err)
	}
	return enc
}

// ChooseName walks the filename chain and returns the first usable candidate
// together with every attempt made, for logging.
func ChooseName(contentDisposition, finalURL, displayName string, ordinal int) (Candidate, []Candidate) {
	params := parseDisposition(contentDisposition)
	attempts := []func() Candidate{
		func() Candidate { return fromExtended(params) },
		func() Candidate { return fromPlain(params) },
		func() Candidate { return FromURL(finalURL) },
		func() Candidate { return FromDisplayName(displayName) },
	}

	var tried []Candidate
	for _, attempt := range attempts {
		c := attempt()
		tried = append(tried, c)
		if c.OK() {
			return c, tried
		}
	}
	c := Fallback(ordinal)
	tried = append(tried, c)
	return c, tried
}

// FromExtended decodes an RFC 5987 filename*=<charset>'<lang>'<pct-octets> parameter
func FromExtended(contentDisposition string) Candidate {
	return fromExtended(parseDisposition(contentDisposition))
}

func fromExtended(params map[string]string) Candidate {
	c := Candidate{Source: SourceExtended}
	v, ok := params["filename*"]
	if !ok {
		c.Err = errNoParam
		return c
	}

	parts := strings.SplitN(v, "'", 3)
	if len(parts) != 3 {
		c.Err = fmt.Errorf("malformed extended value %q", v)
		return c
	}
	raw, err := url.PathUnescape(parts[2])
	if err != nil {
		c.Err = fmt.Errorf("percent-decoding: %w", err)
		return c
	}

	label := strings.TrimSpace(parts[0])
	if label == "" {
		label = "utf-8"
	}
	enc, err := lookupEncoding(label)
	if err != nil {
		c.Err = err
		return c
	}
	name, ok := strictDecode(enc, []byte(raw))
	if !ok {
		c.Err = fmt.Errorf("value is not valid %s", label)
		return c
	}
	c.Name = name
	if strings.TrimSpace(name) == "" {
		c.Err = errors.New("blank name")
	}
	return c
}

// FromPlain decodes a plain filename= parameter whose octets may be in a legacy Korean encoding
func FromPlain(contentDisposition string) Candidate {
	return fromPlain(parseDisposition(contentDisposition))
}

func fromPlain(params map[string]string) Candidate {
	c := Candidate{Source: SourcePlain}
	v, ok := params["filename"]
	if !ok {
		c.Err = errNoParam
		return c
	}

	raw := latin1Octets(v)
	for _, d := range plainDecoders {
		name, ok := strictDecode(d.enc, raw)
		if !ok {
			continue
		}
		name = strings.ReplaceAll(name, "+", " ")
		if strings.TrimSpace(name) == "" {
			continue
		}
		if unescaped, err := url.PathUnescape(name); err == nil && utf8.ValidString(unescaped) {
			name = unescaped
		}
		c.Name = name
		return c
	}
	// Folding to Latin-1 broke a name that was valid UTF-8 to begin with.
	if utf8.ValidString(v) && strings.TrimSpace(v) != "" && !isASCII(v) {
		c.Name = strings.ReplaceAll(v, "+", " ")
		return c
	}
	c.Err = models.NewError(models.KindEncoding, "filename", fmt.Errorf("no decoder accepted %q", v))
	return c
}

// FromURL takes the final path segment of the response URL when it has an extension
func FromURL(finalURL string) Candidate {
	c := Candidate{Source: SourceURL}
	u, err := url.Parse(finalURL)
	if err != nil {
		c.Err = err
		return c
	}
	seg := u.Path
	if i := strings.LastIndex(seg, "/"); i >= 0 {
		seg = seg[i+1:]
	}
	if !strings.Contains(seg, ".") {
		c.Err = errors.New("no extension in URL path")
		return c
	}
	c.Name = seg
	return c
}

// FromDisplayName accepts the name shown on the detail page when it carries an extension
func FromDisplayName(name string) Candidate {
	c := Candidate{Source: SourceDisplay, Name: strings.TrimSpace(name)}
	if !HasExtension(c.Name) {
		c.Err = errors.New("display name has no extension")
	}
	return c
}

// Fallback is the last resort name for attachment number ordinal
func Fallback(ordinal int) Candidate {
	return Candidate{
		Name:   fmt.Sprintf("attachment_%d.unknown", ordinal),
		Source: SourceFallback,
	}
}

// parseDisposition splits a Content-Disposition value into lower-cased
// parameter names and unquoted values. Raw octets are preserved.
func parseDisposition(v string) map[string]string {
	params := make(map[string]string)
	for _, part := range splitParams(v) {
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(part[:eq]))
		val := strings.TrimSpace(part[eq+1:])
		if len(val) >= 2 && (val[0] == '"' || val[0] == '\'') && val[len(val)-1] == val[0] {
			val = unescapeQuoted(val[1 : len(val)-1])
		}
		if _, dup := params[key]; !dup {
			params[key] = val
		}
	}
	return params
}

func splitParams(v string) []string {
	var parts []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(v); i++ {
		ch := v[i]
		switch {
		case ch == '\\' && inQuote && i+1 < len(v):
			cur.WriteByte(ch)
			cur.WriteByte(v[i+1])
			i++
			continue
		case ch == '"':
			inQuote = !inQuote
		case ch == ';' && !inQuote:
			parts = append(parts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(ch)
	}
	return append(parts, cur.String())
}

func unescapeQuoted(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// latin1Octets recovers the bytes a server sent. Go keeps header octets
// as-is, but a value that already went through a Latin-1 to UTF-8 step
// arrives as runes <= U+00FF and is folded back to single bytes.
func latin1Octets(v string) []byte {
	if !utf8.ValidString(v) {
		return []byte(v)
	}
	if b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(v)); err == nil {
		return b
	}
	return []byte(v)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// strictDecode decodes b with enc, rejecting any replacement characters
func strictDecode(enc encoding.Encoding, b []byte) (string, bool) {
	if enc == unicode.UTF8 {
		if !utf8.Valid(b) {
			return "", false
		}
		return string(b), true
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil || !utf8.Valid(out) || strings.ContainsRune(string(out), utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

func lookupEncoding(label string) (encoding.Encoding, error) {
	if strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return unicode.UTF8, nil
	}
	if enc, err := htmlindex.Get(label); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil || enc == nil {
		return nil, models.NewError(models.KindEncoding, "filename*", fmt.Errorf("unsupported charset %q", label))
	}
	return enc, nil
}
