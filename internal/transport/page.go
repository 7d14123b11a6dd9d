package transport

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/law-makers/harvest/pkg/models"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
)

// maxPageBytes bounds how much of an HTML page is read into memory
const maxPageBytes = 16 << 20

// Page is a fetched document decoded to UTF-8
type Page struct {
	URL         string
	ContentType string
	Body        string
}

// Fetch issues desc and returns the decoded body text
func (s *Session) Fetch(ctx context.Context, desc models.RequestDescriptor) (*Page, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	st, err := s.Open(ctx, desc)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	contentType := st.Header.Get("Content-Type")
	r, err := s.decoder(st.Body, contentType)
	if err != nil {
		return nil, &models.Error{Kind: models.KindEncoding, Op: "fetch", URL: desc.URL, Err: err}
	}

	data, err := io.ReadAll(io.LimitReader(r, maxPageBytes))
	if err != nil {
		return nil, &models.Error{Kind: models.KindTransport, Op: "read", URL: desc.URL, Err: err}
	}

	return &Page{
		URL:         st.URL,
		ContentType: contentType,
		Body:        string(data),
	}, nil
}

// decoder wraps body so it yields UTF-8
func (s *Session) decoder(body io.Reader, contentType string) (io.Reader, error) {
	name := strings.TrimSpace(strings.ToLower(s.opts.Encoding))
	if name != "" && name != "auto" {
		enc, err := htmlindex.Get(name)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
		}
		return enc.NewDecoder().Reader(body), nil
	}
	return charset.NewReader(body, contentType)
}
