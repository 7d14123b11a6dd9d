package sites

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/harvest/internal/content"
	"github.com/law-makers/harvest/internal/engine/script"
	urlutil "github.com/law-makers/harvest/internal/utils/url"
	"github.com/law-makers/harvest/pkg/models"
)

var (
	datePattern    = regexp.MustCompile(`\d{4}[-./]\d{1,2}[-./]\d{1,2}`)
	numberPattern  = regexp.MustCompile(`^[\d,]+$`)
	sizeSuffix     = regexp.MustCompile(`(?i)\s*[\[(]\s*([\d.,]+)\s*(bytes|byte|b|kb|mb|gb)?\s*[\])]\s*$`)
	fileExtPattern = regexp.MustCompile(`(?i)\.(hwp|hwpx|pdf|docx?|xlsx?|pptx?|zip|jpg|jpeg|png|gif|txt)(\?|$)`)
)

// genericContent lists detail-body containers common to Korean board software
var genericContent = []string{
	"div.board_view_data", "div.board_view_content", "div.board_view", "div.view_content",
	"div.view_data", "div.view_con", "div.contents_view", "div.bbs_view", "div.board-view",
	"td.content", "td[class*=content]", "div.content", ".view_cont", "article",
}

// genericAttachments lists anchors that usually point at files
var genericAttachments = []string{
	"div[class*=file] a", "div[class*=attach] a", "ul[class*=file] a", "dd[class*=file] a",
	"a[href*=download]", "a[href*=fileDown]", "a[href*=FileDown]",
	"a[onclick*=download]", "a[onclick*=Download]", "a[onclick*=fileDown]", "a[onclick*=fnDown]",
}

func parseDoc(op, body string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, models.ParseError(op, "failed to parse HTML: %v", err)
	}
	return doc, nil
}

// cleanText collapses whitespace runs to single spaces
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// findTable returns the configured list table, else the first board-like table
// with body rows.
func findTable(doc *goquery.Document, selector string) *goquery.Selection {
	if selector != "" {
		return doc.Find(selector).First()
	}
	for _, sel := range []string{"table.board01-list", "table[class*=list]", "table[class*=board]", "table[class*=bbs]", "table"} {
		var found *goquery.Selection
		doc.Find(sel).EachWithBreak(func(_ int, t *goquery.Selection) bool {
			if t.Find("tbody tr td").Length() > 0 {
				found = t
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return doc.Find("table").First()
}

// findContent returns the HTML of the first configured or known container whose
// text exceeds minText characters.
func findContent(doc *goquery.Document, selector string, fallbacks []string, minText int) (string, bool) {
	candidates := fallbacks
	if selector != "" {
		candidates = append([]string{selector}, fallbacks...)
	}
	for _, sel := range candidates {
		s := doc.Find(sel).First()
		if s.Length() == 0 || len([]rune(cleanText(s.Text()))) <= minText {
			continue
		}
		if html, err := s.Html(); err == nil {
			return html, true
		}
	}

	// A labelled row such as <th>내용</th><td>...</td>.
	var labelled string
	doc.Find("th").EachWithBreak(func(_ int, th *goquery.Selection) bool {
		if cleanText(th.Text()) != "내용" {
			return true
		}
		if td := th.NextFilteredUntil("td", "th").First(); td.Length() > 0 {
			labelled, _ = td.Html()
			return false
		}
		return true
	})
	if strings.TrimSpace(labelled) != "" {
		return labelled, true
	}
	return "", false
}

// largestBlock returns the div with the most text, when it has more than minText characters
func largestBlock(doc *goquery.Document, minText int) (string, bool) {
	var best *goquery.Selection
	bestLen := minText
	doc.Find("div").Each(func(_ int, s *goquery.Selection) {
		if s.Find("div").Length() > 0 {
			return
		}
		if n := len([]rune(cleanText(s.Text()))); n > bestLen {
			best, bestLen = s, n
		}
	})
	if best == nil {
		return "", false
	}
	html, err := best.Html()
	return html, err == nil
}

// normalize converts a located content fragment, treating failure as unavailable
func normalize(n *content.Normalizer, fragment string) string {
	out, err := n.Markdown(fragment)
	if err != nil {
		return ""
	}
	return out
}

// attachmentRow returns the cell next to a header labelled 첨부 (attachments)
func attachmentRow(doc *goquery.Document) *goquery.Selection {
	var cell *goquery.Selection
	doc.Find("th, dt").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if !strings.Contains(h.Text(), "첨부") {
			return true
		}
		if h.Is("th") {
			cell = h.NextFilteredUntil("td", "th").First()
		} else {
			cell = h.NextFiltered("dd")
		}
		return cell.Length() == 0
	})
	return cell
}

// displayName splits a trailing size or count annotation off an anchor's text
func displayName(text string) (string, *int64) {
	name := cleanText(text)
	m := sizeSuffix.FindStringSubmatchIndex(name)
	if m == nil {
		return name, nil
	}
	trimmed := strings.TrimSpace(name[:m[0]])
	if trimmed == "" {
		return name, nil
	}
	var hint *int64
	if m[4] >= 0 {
		n, err := strconv.ParseFloat(strings.ReplaceAll(name[m[2]:m[3]], ",", ""), 64)
		if err == nil {
			mult := 1.0
			switch strings.ToLower(name[m[4]:m[5]]) {
			case "kb":
				mult = 1 << 10
			case "mb":
				mult = 1 << 20
			case "gb":
				mult = 1 << 30
			}
			size := int64(n * mult)
			hint = &size
		}
	}
	return trimmed, hint
}

// onclickOrHref returns the script attached to an anchor, if any
func onclickOrHref(a *goquery.Selection) (string, bool) {
	if onclick, ok := a.Attr("onclick"); ok && strings.TrimSpace(onclick) != "" {
		return onclick, true
	}
	if href, ok := a.Attr("href"); ok && urlutil.IsScriptHref(href) {
		return href, true
	}
	return "", false
}

// plainHref returns a navigable href, skipping script and fragment links
func plainHref(a *goquery.Selection) (string, bool) {
	href, ok := a.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") || urlutil.IsScriptHref(href) {
		return "", false
	}
	return href, true
}

// expand substitutes {0}, {1}... in tmpl with the call's arguments
func expand(tmpl string, call script.Call) string {
	out := tmpl
	for i, a := range call.Args {
		out = strings.ReplaceAll(out, fmt.Sprintf("{%d}", i), a)
	}
	return out
}

// firstArgCall returns the first captured call that has a non-empty first argument
func firstArgCall(res *script.Result) (script.Call, bool) {
	for _, c := range res.Calls {
		if c.Arg(0) != "" {
			return c, true
		}
	}
	return script.Call{}, false
}

type attachmentKey struct{ name, url, form string }

// dedupe drops attachments repeated with the same name and request
func dedupe(in []models.Attachment) []models.Attachment {
	seen := make(map[attachmentKey]bool, len(in))
	out := make([]models.Attachment, 0, len(in))
	for _, a := range in {
		k := attachmentKey{a.DisplayName, a.Source.URL, fmt.Sprint(a.Source.Form)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, a)
	}
	return out
}
