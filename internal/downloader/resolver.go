// internal/downloader/resolver.go
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/law-makers/harvest/internal/transport"
	"github.com/law-makers/harvest/pkg/models"
	"github.com/rs/zerolog/log"
)

// BufferSize is the fixed copy buffer used when streaming an attachment to disk
const BufferSize = 32 << 10

// Opener opens a request descriptor as a response stream
type Opener interface {
	Open(ctx context.Context, desc models.RequestDescriptor) (*transport.Stream, error)
}

// Resolver downloads attachments and recovers their real file names
type Resolver struct {
	opener Opener
}

// NewResolver creates a Resolver that fetches through o
func NewResolver(o Opener) *Resolver {
	return &Resolver{opener: o}
}

// Resolve downloads att into destDir. ordinal is the 1-based position of the
// attachment on its detail page. Failures are reported in the outcome, never panicked or returned.
func (r *Resolver) Resolve(ctx context.Context, att models.Attachment, ordinal int, destDir string) models.DownloadOutcome {
	start := time.Now()
	out := models.DownloadOutcome{DisplayName: att.DisplayName}

	fail := func(kind models.ErrorKind, err error) models.DownloadOutcome {
		out.Success = false
		out.FailureReason = models.KindPtr(kind)
		out.Error = err.Error()
		log.Warn().
			Str("attachment", att.DisplayName).
			Str("url", att.Source.URL).
			Str("reason", string(kind)).
			Err(err).
			Msg("Attachment download failed")
		return out
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fail(models.KindIO, fmt.Errorf("failed to create attachment directory: %w", err))
	}

	st, err := r.opener.Open(ctx, att.Source)
	if err != nil {
		return fail(models.KindTransport, err)
	}
	defer st.Close()

	chosen, tried := ChooseName(st.Header.Get("Content-Disposition"), st.URL, att.DisplayName, ordinal)
	if chosen.Source == SourceFallback {
		ev := log.Info().
			Str("attachment", att.DisplayName).
			Str("kind", string(models.KindEncoding)).
			Str("name", chosen.Name)
		for _, c := range tried {
			if c.Err != nil && !errors.Is(c.Err, errNoParam) {
				ev = ev.AnErr(string(c.Source), c.Err)
			}
		}
		ev.Msg("No usable filename, using fallback")
	}
	out.NameSource = string(chosen.Source)
	out.FinalName = SanitizeFilename(chosen.Name)

	f, path, err := createUnique(destDir, out.FinalName)
	if err != nil {
		return fail(models.KindIO, err)
	}
	out.FinalName = filepath.Base(path)
	out.Path = path

	buf := make([]byte, BufferSize)
	// Wrappers hide ReadFrom/WriteTo so every byte goes through buf.
	n, copyErr := io.CopyBuffer(struct{ io.Writer }{f}, struct{ io.Reader }{st.Body}, buf)
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(path)
		out.Path = ""
		return fail(models.KindTransport, fmt.Errorf("failed to stream body: %w", copyErr))
	}
	if closeErr != nil {
		os.Remove(path)
		out.Path = ""
		return fail(models.KindIO, fmt.Errorf("failed to write file: %w", closeErr))
	}

	info, err := os.Stat(path)
	if err != nil {
		return fail(models.KindIO, err)
	}
	if info.Size() == 0 {
		os.Remove(path)
		out.Path = ""
		return fail(models.KindEmptyDownload, errors.New("server returned zero bytes"))
	}

	out.ByteLength = info.Size()
	out.Success = true

	log.Debug().
		Str("file", out.FinalName).
		Str("name_source", out.NameSource).
		Int64("bytes", n).
		Dur("duration", time.Since(start)).
		Msg("Download completed")

	return out
}

// createUnique creates name in dir, appending " (n)" before the extension on collision
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; i < 1000; i++ {
		candidate := name
		if i > 1 {
			suffix := fmt.Sprintf(" (%d)", i)
			candidate = cutRunes(stem, MaxNameBytes-len(ext)-len(suffix)) + suffix + ext
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create file: %w", err)
		}
	}
	return nil, "", fmt.Errorf("too many files named %q", name)
}
