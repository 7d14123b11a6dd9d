package headers

import (
	"net/http"
	"reflect"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	in := []string{"User-Agent: Bot", "Accept: text/html", "BadHeader"}
	out := ParseHeaders(in)
	expected := map[string]string{"User-Agent": "Bot", "Accept": "text/html"}
	if !reflect.DeepEqual(out, expected) {
		t.Fatalf("unexpected parse result: %#v", out)
	}
}

func TestMergeLaterWins(t *testing.T) {
	out := Merge(BrowserDefaults(), map[string]string{"accept": "text/plain", "X-Site": "kidp"})
	if out["Accept"] != "text/plain" {
		t.Fatalf("override lost: %#v", out)
	}
	if out["X-Site"] != "kidp" || out["Accept-Language"] == "" {
		t.Fatalf("unexpected merge result: %#v", out)
	}

	h := http.Header{}
	Apply(h, out)
	if h.Get("x-site") != "kidp" {
		t.Fatalf("header not applied: %#v", h)
	}
}
