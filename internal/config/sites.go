package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	urlutil "github.com/law-makers/harvest/internal/utils/url"
	"gopkg.in/yaml.v3"
)

// ErrUnknownSite is returned when a site code is not present in the sites file
var ErrUnknownSite = errors.New("unknown site")

// SiteFile mirrors the structure of sites.yaml
type SiteFile struct {
	Defaults SiteDefaults     `yaml:"defaults"`
	Sites    map[string]*Site `yaml:"sites"`
}

// SiteDefaults apply to every site unless the site overrides them
type SiteDefaults struct {
	MaxPages     int           `yaml:"max_pages"`
	RequestDelay time.Duration `yaml:"request_delay"`
	OutputDir    string        `yaml:"output_dir"`
}

// Site is the declarative description of one board
type Site struct {
	Code         string            `yaml:"-"`
	Name         string            `yaml:"name"`
	Type         string            `yaml:"type"`
	BaseURL      string            `yaml:"base_url"`
	ListURL      string            `yaml:"list_url"`
	Encoding     string            `yaml:"encoding"`
	SSLVerify    *bool             `yaml:"ssl_verify"`
	MaxPages     int               `yaml:"max_pages"`
	RequestDelay time.Duration     `yaml:"request_delay"`
	Headers      map[string]string `yaml:"headers"`
	Pagination   Pagination        `yaml:"pagination"`
	Selectors    Selectors         `yaml:"selectors"`
	// DetailURL turns script-invoked navigation into a URL, e.g. "view.do?seq={0}".
	DetailURL string   `yaml:"detail_url"`
	Download  Download `yaml:"download"`
}

// Pagination is the page-URL template of a site
type Pagination struct {
	// Type is one of query, path or form.
	Type     string            `yaml:"type"`
	Param    string            `yaml:"param"`
	Template string            `yaml:"template"`
	Form     map[string]string `yaml:"form"`
}

// Selectors are the CSS selectors a table adapter tries before its heuristics
type Selectors struct {
	Table       string            `yaml:"table"`
	Rows        string            `yaml:"rows"`
	TitleLink   string            `yaml:"title_link"`
	Fields      map[string]string `yaml:"fields"`
	Attachment  string            `yaml:"attachment_icon"`
	Content     string            `yaml:"content"`
	Attachments string            `yaml:"attachments"`
}

// Download describes script-invoked download endpoints
type Download struct {
	URL    string `yaml:"url"`
	Method string `yaml:"method"`
	// Params maps form/query field names to positional handler arguments, e.g. {fileId: "0"}.
	Params map[string]string `yaml:"params"`
}

// VerifyTLS reports whether certificate verification is enabled for the site
func (s *Site) VerifyTLS() bool {
	return s.SSLVerify == nil || *s.SSLVerify
}

// LoadSites reads and validates a sites YAML file
func LoadSites(path string) (*SiteFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sites file: %w", err)
	}
	return ParseSites(data)
}

// ParseSites decodes sites YAML
func ParseSites(data []byte) (*SiteFile, error) {
	var f SiteFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sites file: %w", err)
	}
	if len(f.Sites) == 0 {
		return nil, fmt.Errorf("sites file defines no sites")
	}
	for code, s := range f.Sites {
		if s == nil {
			return nil, fmt.Errorf("site %q: empty definition", code)
		}
		s.Code = code
		if s.Name == "" {
			s.Name = code
		}
		if s.Type == "" {
			s.Type = "table"
		}
		if s.BaseURL == "" {
			s.BaseURL = s.ListURL
		}
		if err := urlutil.ValidateURL(s.ListURL); err != nil {
			return nil, fmt.Errorf("site %q: list_url: %w", code, err)
		}
		if err := urlutil.ValidateURL(s.BaseURL); err != nil {
			return nil, fmt.Errorf("site %q: base_url: %w", code, err)
		}
		switch s.Pagination.Type {
		case "", "query", "path", "form":
		default:
			return nil, fmt.Errorf("site %q: unknown pagination type %q", code, s.Pagination.Type)
		}
	}
	return &f, nil
}

// Site returns the definition for code
func (f *SiteFile) Site(code string) (*Site, error) {
	s, ok := f.Sites[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSite, code)
	}
	return s, nil
}

// Codes returns every site code in sorted order
func (f *SiteFile) Codes() []string {
	codes := make([]string, 0, len(f.Sites))
	for code := range f.Sites {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// MaxPagesFor resolves the page ceiling: explicit override, then site, then file defaults, then fallback.
func (f *SiteFile) MaxPagesFor(s *Site, override int) int {
	switch {
	case override > 0:
		return override
	case s.MaxPages > 0:
		return s.MaxPages
	case f.Defaults.MaxPages > 0:
		return f.Defaults.MaxPages
	}
	return DefaultMaxPages
}

// DelayFor resolves the politeness delay the same way as MaxPagesFor
func (f *SiteFile) DelayFor(s *Site, override time.Duration) time.Duration {
	switch {
	case override >= 0:
		return override
	case s.RequestDelay > 0:
		return s.RequestDelay
	case f.Defaults.RequestDelay > 0:
		return f.Defaults.RequestDelay
	}
	return DefaultRequestDelay
}
