package sites

import (
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/harvest/internal/config"
	"github.com/law-makers/harvest/internal/content"
	"github.com/law-makers/harvest/internal/engine/script"
	urlutil "github.com/law-makers/harvest/internal/utils/url"
	"github.com/law-makers/harvest/pkg/models"
)

const (
	titleCells     = "td.title a, td.subject a, td.tit a, td[class*=title] a, td[class*=subject] a"
	attachmentIcon = "img[src*=file], img[src*=clip], img[src*=attach], img[alt*=첨부], img[alt*=파일], [class*=file] img, [class*=attach] img, i[class*=file], span[class*=file]"
)

// base holds what every adapter shares: the site definition and its normalizer
type base struct {
	site       *config.Site
	normalizer *content.Normalizer
	// pageURL is the detail page being parsed; links resolve against it
	// instead of the site base URL when set.
	pageURL string
}

func newBase(site *config.Site) base {
	return base{site: site, normalizer: content.NewNormalizer(site.BaseURL)}
}

// at returns a copy of b bound to the page at pageURL
func (b base) at(pageURL string) base {
	if pageURL == "" {
		return b
	}
	b.pageURL = pageURL
	b.normalizer = content.NewNormalizer(pageURL)
	return b
}

func (b base) resolve(ref string) string {
	if b.pageURL != "" {
		return urlutil.ResolveURL(b.pageURL, ref)
	}
	return urlutil.ResolveURL(b.site.BaseURL, ref)
}

// pageDescriptor builds list page n from the site's pagination template
func (b base) pageDescriptor(page int) models.RequestDescriptor {
	if page < 1 {
		page = 1
	}
	p := b.site.Pagination
	n := strconv.Itoa(page)
	param := p.Param
	if param == "" {
		param = "page"
	}

	switch p.Type {
	case "path":
		if p.Template != "" {
			return models.Get(urlutil.ResolveURL(b.site.ListURL, strings.ReplaceAll(p.Template, "{page}", n)))
		}
	case "form":
		form := make(map[string]string, len(p.Form)+1)
		for k, v := range p.Form {
			form[k] = v
		}
		form[param] = n
		return models.Post(b.site.ListURL, form)
	}

	if page == 1 {
		return models.Get(b.site.ListURL)
	}
	u, err := urlutil.SetQueryParam(b.site.ListURL, param, n)
	if err != nil {
		return models.Get(b.site.ListURL)
	}
	return models.Get(u)
}

// detailRequest turns a title anchor into the detail page request
func (b base) detailRequest(a *goquery.Selection) (models.RequestDescriptor, bool) {
	if href, ok := plainHref(a); ok {
		return models.Get(b.resolve(href)), true
	}
	src, ok := onclickOrHref(a)
	if !ok {
		return models.RequestDescriptor{}, false
	}
	res, err := script.Evaluate(src)
	if err != nil {
		return models.RequestDescriptor{}, false
	}
	if res.Href != "" {
		return models.Get(b.resolve(res.Href)), true
	}
	if b.site.DetailURL != "" {
		if call, ok := firstArgCall(res); ok {
			return models.Get(b.resolve(expand(b.site.DetailURL, call))), true
		}
	}
	return models.RequestDescriptor{}, false
}

// downloadRequest turns an attachment anchor into its download request
func (b base) downloadRequest(a *goquery.Selection) (models.RequestDescriptor, map[string]string, bool) {
	if href, ok := plainHref(a); ok {
		return models.Get(b.resolve(href)), nil, true
	}
	src, ok := onclickOrHref(a)
	if !ok {
		return models.RequestDescriptor{}, nil, false
	}
	res, err := script.Evaluate(src)
	if err != nil {
		return models.RequestDescriptor{}, nil, false
	}
	if res.Href != "" {
		return models.Get(b.resolve(res.Href)), nil, true
	}

	d := b.site.Download
	call, ok := firstArgCall(res)
	if d.URL == "" || !ok {
		return models.RequestDescriptor{}, nil, false
	}
	params := make(map[string]string, len(d.Params))
	for field, ref := range d.Params {
		if i, err := strconv.Atoi(ref); err == nil {
			params[field] = call.Arg(i)
		} else {
			params[field] = expand(ref, call)
		}
	}
	target := b.resolve(expand(d.URL, call))
	if strings.EqualFold(d.Method, "POST") {
		return models.Post(target, params), params, true
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if u, err := urlutil.SetQueryParam(target, k, params[k]); err == nil {
			target = u
		}
	}
	return models.Get(target), params, true
}

// attachment builds an Attachment from an anchor, or reports false when the
// anchor leads nowhere.
func (b base) attachment(a *goquery.Selection) (models.Attachment, bool) {
	src, tokens, ok := b.downloadRequest(a)
	if !ok {
		return models.Attachment{}, false
	}
	name, hint := displayName(a.Text())
	if name == "" {
		name = cleanText(a.AttrOr("title", ""))
	}
	return models.Attachment{DisplayName: name, Source: src, SizeHint: hint, Tokens: tokens}, true
}

// Table is the configurable adapter for conventional table boards
type Table struct {
	base
}

// NewTable creates a table adapter for site
func NewTable(site *config.Site) *Table {
	return &Table{base: newBase(site)}
}

// BuildPageDescriptor implements SiteAdapter
func (t *Table) BuildPageDescriptor(page int) models.RequestDescriptor {
	return t.pageDescriptor(page)
}

// ParseList implements SiteAdapter
func (t *Table) ParseList(body string) ([]models.Announcement, error) {
	doc, err := parseDoc("list", body)
	if err != nil {
		return nil, err
	}

	var rows *goquery.Selection
	sel := t.site.Selectors
	if sel.Rows != "" {
		rows = doc.Find(sel.Rows)
	} else {
		table := findTable(doc, sel.Table)
		if table.Length() == 0 {
			return nil, models.ParseError("list", "no list table found")
		}
		rows = table.Find("tbody tr")
		if rows.Length() == 0 {
			rows = table.Find("tr")
		}
	}

	var out []models.Announcement
	rows.Each(func(_ int, row *goquery.Selection) {
		if a, ok := t.parseRow(row); ok {
			out = append(out, a)
		}
	})
	return out, nil
}

func (t *Table) parseRow(row *goquery.Selection) (models.Announcement, bool) {
	cells := row.Find("td")
	if cells.Length() == 0 {
		return models.Announcement{}, false
	}

	sel := t.site.Selectors
	var link *goquery.Selection
	if sel.TitleLink != "" {
		link = row.Find(sel.TitleLink).First()
	} else {
		link = row.Find(titleCells).First()
		if link.Length() == 0 {
			link = row.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
				return cleanText(a.Text()) != ""
			}).First()
		}
	}
	if link.Length() == 0 {
		return models.Announcement{}, false
	}

	title := cleanText(link.Text())
	if title == "" {
		title = cleanText(link.AttrOr("title", ""))
	}
	detail, ok := t.detailRequest(link)
	if title == "" || !ok {
		return models.Announcement{}, false
	}

	meta := make(map[string]string)
	for key, s := range sel.Fields {
		if v := cleanText(row.Find(s).First().Text()); v != "" {
			meta[key] = v
		}
	}
	rowMetadata(cells, meta)

	var hasAttachment bool
	if sel.Attachment != "" {
		hasAttachment = row.Find(sel.Attachment).Length() > 0
	} else {
		hasAttachment = row.Find(attachmentIcon).Length() > 0
	}

	return models.Announcement{
		Title:         title,
		Detail:        detail,
		Metadata:      meta,
		HasAttachment: hasAttachment,
	}, true
}

// rowMetadata fills num, date and views from cell contents when not already set
func rowMetadata(cells *goquery.Selection, meta map[string]string) {
	last := cells.Length() - 1
	cells.Each(func(i int, td *goquery.Selection) {
		text := cleanText(td.Text())
		switch {
		case text == "":
		case i == 0 && numberPattern.MatchString(text):
			setDefault(meta, "num", text)
		case datePattern.MatchString(text):
			setDefault(meta, "date", datePattern.FindString(text))
		case i == last && i > 0 && numberPattern.MatchString(text):
			setDefault(meta, "views", text)
		}
	})
}

func setDefault(m map[string]string, key, value string) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

// ParseDetail implements SiteAdapter
func (t *Table) ParseDetail(pageURL, body string) (Detail, error) {
	return (&Table{base: t.at(pageURL)}).parseDetail(body)
}

func (t *Table) parseDetail(body string) (Detail, error) {
	doc, err := parseDoc("detail", body)
	if err != nil {
		return Detail{}, err
	}

	atts := t.attachments(doc)
	fragment, ok := findContent(doc, t.site.Selectors.Content, genericContent, 0)
	if !ok {
		fragment, ok = largestBlock(doc, 100)
	}
	if !ok {
		return Detail{Attachments: atts}, models.ParseError("detail", "no content container found")
	}
	return Detail{Content: normalize(t.normalizer, fragment), Attachments: atts}, nil
}

func (t *Table) attachments(doc *goquery.Document) []models.Attachment {
	var anchors *goquery.Selection
	if s := t.site.Selectors.Attachments; s != "" {
		anchors = doc.Find(s)
	} else {
		anchors = doc.Find(strings.Join(genericAttachments, ", "))
		if cell := attachmentRow(doc); cell != nil {
			anchors = anchors.AddSelection(cell.Find("a"))
		}
		anchors = anchors.AddSelection(doc.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
			return fileExtPattern.MatchString(a.AttrOr("href", ""))
		}))
		// Back to document order so ordinals follow the page.
		union := anchors
		anchors = doc.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
			return a.IsSelection(union)
		})
	}

	var out []models.Attachment
	anchors.Each(func(_ int, a *goquery.Selection) {
		if att, ok := t.attachment(a); ok {
			out = append(out, att)
		}
	})
	return dedupe(out)
}
