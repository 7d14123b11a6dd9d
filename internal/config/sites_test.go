package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSites = `
defaults:
  max_pages: 6
  request_delay: 2s
sites:
  kidp:
    name: 한국디자인진흥원
    type: kidp
    list_url: https://kidp.or.kr/?menuno=1202
    pagination:
      type: query
      param: pageIndex
  djbea:
    type: djbea
    base_url: https://www.djbea.or.kr
    list_url: https://www.djbea.or.kr/pms/an/an_0101/list
    ssl_verify: false
    max_pages: 2
    request_delay: 500ms
`

func TestParseSites(t *testing.T) {
	f, err := ParseSites([]byte(sampleSites))
	require.NoError(t, err)

	assert.Equal(t, []string{"djbea", "kidp"}, f.Codes())

	kidp, err := f.Site("kidp")
	require.NoError(t, err)
	assert.Equal(t, "kidp", kidp.Code)
	assert.Equal(t, "https://kidp.or.kr/?menuno=1202", kidp.BaseURL)
	assert.True(t, kidp.VerifyTLS())
	assert.Equal(t, "pageIndex", kidp.Pagination.Param)

	djbea, err := f.Site("djbea")
	require.NoError(t, err)
	assert.False(t, djbea.VerifyTLS())
	assert.Equal(t, "djbea", djbea.Name)

	_, err = f.Site("nope")
	assert.ErrorIs(t, err, ErrUnknownSite)
}

func TestSiteOverrides(t *testing.T) {
	f, err := ParseSites([]byte(sampleSites))
	require.NoError(t, err)
	kidp, _ := f.Site("kidp")
	djbea, _ := f.Site("djbea")

	assert.Equal(t, 6, f.MaxPagesFor(kidp, 0))
	assert.Equal(t, 2, f.MaxPagesFor(djbea, 0))
	assert.Equal(t, 9, f.MaxPagesFor(djbea, 9))

	assert.Equal(t, 2*time.Second, f.DelayFor(kidp, UnsetDelay))
	assert.Equal(t, 500*time.Millisecond, f.DelayFor(djbea, UnsetDelay))
	assert.Equal(t, time.Duration(0), f.DelayFor(djbea, 0))
}

func TestParseSitesRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"empty":      "sites: {}",
		"bad url":    "sites:\n  x:\n    list_url: ftp://example.com\n",
		"pagination": "sites:\n  x:\n    list_url: https://example.com\n    pagination:\n      type: scroll\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSites([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadSitesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSites), 0o644))

	f, err := LoadSites(path)
	require.NoError(t, err)
	assert.Len(t, f.Sites, 2)

	_, err = LoadSites(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
