package sites

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/harvest/internal/config"
	"github.com/law-makers/harvest/internal/engine/script"
	urlutil "github.com/law-makers/harvest/internal/utils/url"
	"github.com/law-makers/harvest/pkg/models"
)

const djbeaDownloadPath = "/pms/common/file/download"

var (
	djbeaEmpty   = []string{"게시글이 없습니다", "등록된 게시물이 없습니다"}
	djbeaLists   = "ul[class*=list] > li, ul[class*=board] > li, ul[class*=bbs] > li, ul[class*=basic] > li"
	djbeaContent = append([]string{
		"div.board_view", "div.view_content", "div.bbs_view", "div.view_cont", "div.board_content",
		"div[class*=view]",
	}, genericContent...)
)

// DJBEA adapts the Daejeon business agency board: a card list navigated with
// doViewNew(seq, type) and files fetched through fnDownload(id).
type DJBEA struct {
	base
}

// NewDJBEA creates the DJBEA adapter
func NewDJBEA(site *config.Site) *DJBEA {
	return &DJBEA{base: newBase(site)}
}

// BuildPageDescriptor implements SiteAdapter
func (d *DJBEA) BuildPageDescriptor(page int) models.RequestDescriptor {
	if page <= 1 {
		return models.Get(d.site.ListURL)
	}
	u, err := urlutil.SetQueryParam(d.site.ListURL, "cPage", strconv.Itoa(page))
	if err != nil {
		return models.Get(d.site.ListURL)
	}
	return models.Get(u)
}

// ParseList implements SiteAdapter
func (d *DJBEA) ParseList(body string) ([]models.Announcement, error) {
	doc, err := parseDoc("list", body)
	if err != nil {
		return nil, err
	}
	text := doc.Find("body").Text()
	for _, marker := range djbeaEmpty {
		if strings.Contains(text, marker) {
			return nil, nil
		}
	}

	items := doc.Find(djbeaLists)
	if items.Length() == 0 {
		table := findTable(doc, d.site.Selectors.Table)
		items = table.Find("tbody tr")
	}
	if items.Length() == 0 {
		return nil, models.ParseError("list", "no list items found")
	}

	var out []models.Announcement
	items.Each(func(_ int, item *goquery.Selection) {
		link := item.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
			return cleanText(a.Text()) != ""
		}).First()
		if link.Length() == 0 {
			return
		}
		title := cleanText(link.Find("strong, .tit, .title, .subject").First().Text())
		if title == "" {
			title = cleanText(link.Text())
		}
		detail, ok := d.viewRequest(link)
		if !ok {
			return
		}

		meta := map[string]string{"organization": d.site.Name}
		if date := datePattern.FindString(item.Text()); date != "" {
			meta["date"] = date
		}
		if v := cleanText(item.Find(".num, td.num").First().Text()); v != "" {
			meta["num"] = v
		}
		if v := cleanText(item.Find(".state, .status, [class*=state]").First().Text()); v != "" {
			meta["status"] = v
		}
		out = append(out, models.Announcement{
			Title:         title,
			Detail:        detail,
			Metadata:      meta,
			HasAttachment: item.Find(attachmentIcon).Length() > 0,
		})
	})
	return out, nil
}

// viewRequest maps the board's navigation handlers to the detail URL
func (d *DJBEA) viewRequest(a *goquery.Selection) (models.RequestDescriptor, bool) {
	if src, ok := onclickOrHref(a); ok {
		if res, err := script.Evaluate(src); err == nil {
			if call, ok := res.Find("doViewNew"); ok && call.Arg(0) != "" {
				q := url.Values{}
				q.Set("BBSCTT_SEQ", call.Arg(0))
				q.Set("BBSCTT_TY_CD", call.Arg(1))
				return models.Get(urlutil.ResolveURL(d.site.ListURL, "view_new?"+q.Encode())), true
			}
			for _, name := range []string{"goView", "fnView", "viewDetail"} {
				if call, ok := res.Find(name); ok && call.Arg(0) != "" {
					return models.Get(urlutil.ResolveURL(d.site.ListURL, "view?seq="+url.QueryEscape(call.Arg(0)))), true
				}
			}
		}
	}
	return d.detailRequest(a)
}

// ParseDetail implements SiteAdapter
func (d *DJBEA) ParseDetail(pageURL, body string) (Detail, error) {
	return (&DJBEA{base: d.at(pageURL)}).parseDetail(body)
}

func (d *DJBEA) parseDetail(body string) (Detail, error) {
	doc, err := parseDoc("detail", body)
	if err != nil {
		return Detail{}, err
	}

	atts := d.attachments(doc)
	fragment, ok := findContent(doc, d.site.Selectors.Content, djbeaContent, 50)
	if !ok {
		fragment, ok = largestBlock(doc, 100)
	}
	if !ok {
		return Detail{Attachments: atts}, models.ParseError("detail", "no content container found")
	}
	return Detail{Content: normalize(d.normalizer, fragment), Attachments: atts}, nil
}

func (d *DJBEA) attachments(doc *goquery.Document) []models.Attachment {
	var out []models.Attachment
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		name, hint := displayName(a.Text())
		if src, ok := onclickOrHref(a); ok {
			res, err := script.Evaluate(src)
			if err != nil {
				return
			}
			for _, fn := range []string{"fnDownload", "fileDownload", "download"} {
				if call, ok := res.Find(fn); ok && call.Arg(0) != "" {
					id := call.Arg(0)
					out = append(out, models.Attachment{
						DisplayName: name,
						Source:      models.Get(d.resolve(djbeaDownloadPath + "?fileId=" + url.QueryEscape(id))),
						SizeHint:    hint,
						Tokens:      map[string]string{"fileId": id},
					})
					return
				}
			}
			return
		}

		href, ok := plainHref(a)
		if !ok {
			return
		}
		inFileBlock := a.Closest("[class*=file], [class*=attach]").Length() > 0
		if inFileBlock || fileExtPattern.MatchString(href) || strings.Contains(href, "download") {
			out = append(out, models.Attachment{DisplayName: name, Source: models.Get(d.resolve(href)), SizeHint: hint})
		}
	})
	return dedupe(out)
}
