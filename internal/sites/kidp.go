package sites

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/harvest/internal/config"
	"github.com/law-makers/harvest/internal/engine/script"
	urlutil "github.com/law-makers/harvest/internal/utils/url"
	"github.com/law-makers/harvest/pkg/models"
)

// KIDP board constants. The ztag names the board skin and is echoed on every
// view and download request.
const (
	kidpZtag     = "rO0ABXQAMzxjYWxsIHR5cGU9ImJvYXJkIiBubz0iNjIyIiBza2luPSJraWRwX2JicyI+PC9jYWxsPg=="
	kidpSiteNo   = "16"
	kidpMenuNo   = "1202"
	kidpValidURL = "/skin/board/Valid.html"
)

var (
	kidpContent = append([]string{
		"div.board_view_data", "div.board_view_content", "div.view_data",
		"div.contents_view", "td[class*=content]", ".view_con",
	}, genericContent...)
	countSuffix = regexp.MustCompile(`\s*\(\d+\)\s*$`)
)

// KIDP adapts the Korea Institute of Design Promotion board, which navigates
// and downloads through submitForm(this, action, id).
type KIDP struct {
	base
	menuNo string
}

// NewKIDP creates the KIDP adapter
func NewKIDP(site *config.Site) *KIDP {
	menu := urlutil.QueryParam(site.ListURL, "menuno")
	if menu == "" {
		menu = kidpMenuNo
	}
	return &KIDP{base: newBase(site), menuNo: menu}
}

// BuildPageDescriptor implements SiteAdapter
func (k *KIDP) BuildPageDescriptor(page int) models.RequestDescriptor {
	u, err := urlutil.SetQueryParam(k.site.ListURL, "mode", "list")
	if err != nil {
		return models.Get(k.site.ListURL)
	}
	if page > 1 {
		if paged, err := urlutil.SetQueryParam(u, "pageIndex", strconv.Itoa(page)); err == nil {
			u = paged
		}
	}
	return models.Get(u)
}

// ParseList implements SiteAdapter
func (k *KIDP) ParseList(body string) ([]models.Announcement, error) {
	doc, err := parseDoc("list", body)
	if err != nil {
		return nil, err
	}
	table := findTable(doc, k.site.Selectors.Table)
	if table.Length() == 0 {
		return nil, models.ParseError("list", "no list table found")
	}

	var out []models.Announcement
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}
		link := cells.Eq(1).Find("a").First()
		title := cleanText(link.Text())
		if link.Length() == 0 || title == "" {
			return
		}
		detail, ok := k.viewRequest(link)
		if !ok {
			return
		}

		meta := map[string]string{}
		if v := cleanText(cells.Eq(0).Text()); v != "" {
			meta["num"] = v
		}
		if v := cleanText(cells.Eq(2).Text()); v != "" {
			meta["date"] = v
		}
		if v := cleanText(cells.Eq(3).Text()); v != "" {
			meta["views"] = v
		}
		out = append(out, models.Announcement{
			Title:         title,
			Detail:        detail,
			Metadata:      meta,
			HasAttachment: cells.Length() > 4 && cells.Eq(4).Find("img").Length() > 0,
		})
	})
	return out, nil
}

// viewRequest decodes submitForm(this,'view',N) into the detail URL
func (k *KIDP) viewRequest(a *goquery.Selection) (models.RequestDescriptor, bool) {
	if call, ok := submitForm(a, "view"); ok {
		u := fmt.Sprintf("%s/?menuno=%s&bbsno=%s&siteno=%s&act=view&ztag=%s",
			strings.TrimRight(k.site.BaseURL, "/"), k.menuNo, url.QueryEscape(call.Arg(2)), kidpSiteNo, url.QueryEscape(kidpZtag))
		return models.Get(u), true
	}
	return k.detailRequest(a)
}

// submitForm evaluates an anchor's handler and returns its submitForm call for action
func submitForm(a *goquery.Selection, action string) (script.Call, bool) {
	src, ok := onclickOrHref(a)
	if !ok {
		return script.Call{}, false
	}
	res, err := script.Evaluate(src)
	if err != nil {
		return script.Call{}, false
	}
	for _, c := range res.Calls {
		if c.Name == "submitForm" && c.Arg(1) == action && c.Arg(2) != "" {
			return c, true
		}
	}
	return script.Call{}, false
}

// ParseDetail implements SiteAdapter
func (k *KIDP) ParseDetail(pageURL, body string) (Detail, error) {
	bound := *k
	bound.base = k.at(pageURL)
	return bound.parseDetail(body)
}

func (k *KIDP) parseDetail(body string) (Detail, error) {
	doc, err := parseDoc("detail", body)
	if err != nil {
		return Detail{}, err
	}

	atts := k.attachments(doc)
	fragment, ok := findContent(doc, k.site.Selectors.Content, kidpContent, 0)
	if !ok {
		return Detail{Attachments: atts}, models.ParseError("detail", "no content container found")
	}
	return Detail{Content: normalize(k.normalizer, fragment), Attachments: atts}, nil
}

func (k *KIDP) attachments(doc *goquery.Document) []models.Attachment {
	var anchors *goquery.Selection
	if cell := attachmentRow(doc); cell != nil && cell.Length() > 0 {
		anchors = cell.Find("a")
	} else {
		anchors = doc.Find("a[onclick*=submitForm]")
	}

	var out []models.Attachment
	anchors.Each(func(_ int, a *goquery.Selection) {
		name := countSuffix.ReplaceAllString(cleanText(a.Text()), "")
		if call, ok := submitForm(a, "down"); ok {
			fno := call.Arg(2)
			out = append(out, models.Attachment{
				DisplayName: name,
				Source:      k.downloadForm(fno),
				Tokens:      map[string]string{"fno": fno},
			})
			return
		}
		if href, ok := plainHref(a); ok && fileExtPattern.MatchString(href) {
			out = append(out, models.Attachment{DisplayName: name, Source: models.Get(k.resolve(href))})
		}
	})
	return dedupe(out)
}

// downloadForm is the POST the board's Valid.html endpoint expects for file fno
func (k *KIDP) downloadForm(fno string) models.RequestDescriptor {
	desc := models.Post(k.resolve(kidpValidURL), map[string]string{
		"ztag":      kidpZtag,
		"cates":     "",
		"key":       "",
		"keyword":   "",
		"siteno":    kidpSiteNo,
		"pageIndex": "1",
		"subname":   "",
		"act":       "down",
		"fno":       fno,
	})
	desc.Headers = map[string]string{"Referer": k.resolve("/?menuno=" + k.menuNo)}
	return desc
}
