// Package content turns detail-page markup into the markdown stored in content.md.
package content

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	urlutil "github.com/law-makers/harvest/internal/utils/url"
)

// Unavailable replaces content that could not be extracted
const Unavailable = "*content unavailable*"

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Normalizer converts HTML fragments to GitHub-flavored markdown with
// links and images resolved against a base URL.
type Normalizer struct {
	converter *md.Converter
}

// NewNormalizer creates a Normalizer resolving relative references against baseURL
func NewNormalizer(baseURL string) *Normalizer {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	converter.AddRules(
		md.Rule{
			Filter: []string{"a"},
			Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
				href, exists := selec.Attr("href")
				if !exists || urlutil.IsScriptHref(href) || strings.HasPrefix(href, "#") {
					text := strings.TrimSpace(content)
					return &text
				}

				resolved := urlutil.ResolveURL(baseURL, href)
				var titlePart string
				if title, ok := selec.Attr("title"); ok {
					titlePart = fmt.Sprintf(" %q", title)
				}
				str := fmt.Sprintf("[%s](%s%s)", strings.TrimSpace(content), resolved, titlePart)
				return &str
			},
		},
		md.Rule{
			Filter: []string{"img"},
			Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
				src, exists := selec.Attr("src")
				if !exists || strings.HasPrefix(src, "data:") {
					return md.String("")
				}
				alt, _ := selec.Attr("alt")
				str := fmt.Sprintf("![%s](%s)", alt, urlutil.ResolveURL(baseURL, src))
				return &str
			},
		},
	)

	return &Normalizer{converter: converter}
}

// Markdown cleans fragment and converts it. Blank input yields "".
func (n *Normalizer) Markdown(fragment string) (string, error) {
	if strings.TrimSpace(fragment) == "" {
		return "", nil
	}
	cleaned, err := CleanHTML(fragment)
	if err != nil {
		return "", fmt.Errorf("failed to clean HTML: %w", err)
	}
	out, err := n.converter.ConvertString(cleaned)
	if err != nil {
		return "", fmt.Errorf("failed to convert to markdown: %w", err)
	}
	out = strings.ReplaceAll(out, "\u00a0", " ")
	out = blankRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out), nil
}
