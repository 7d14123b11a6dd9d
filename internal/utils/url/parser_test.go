package urlutil

import "testing"

func TestValidate(t *testing.T) {
	valid := []string{
		"http://example.com",
		"https://example.com/path",
	}
	for _, u := range valid {
		if err := ValidateURL(u); err != nil {
			t.Fatalf("expected valid, got error: %v", err)
		}
	}

	invalid := []string{"ftp://example.com", "//example.com", "http:///"}
	for _, u := range invalid {
		if err := ValidateURL(u); err == nil {
			t.Fatalf("expected invalid for %s", u)
		}
	}
}

func TestResolveURL(t *testing.T) {
	base := "https://kidp.or.kr/board/list.do?menuno=1202"
	cases := map[string]string{
		"view.do?seq=7":      "https://kidp.or.kr/board/view.do?seq=7",
		"/files/a.pdf":       "https://kidp.or.kr/files/a.pdf",
		"https://other.kr/x": "https://other.kr/x",
		"  /trimmed  ":       "https://kidp.or.kr/trimmed",
	}
	for in, want := range cases {
		if got := ResolveURL(base, in); got != want {
			t.Errorf("ResolveURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSetQueryParam(t *testing.T) {
	got, err := SetQueryParam("https://example.com/list?menuno=1202&pageIndex=1", "pageIndex", "3")
	if err != nil {
		t.Fatal(err)
	}
	if QueryParam(got, "pageIndex") != "3" || QueryParam(got, "menuno") != "1202" {
		t.Fatalf("unexpected url %s", got)
	}
}

func TestLastSegment(t *testing.T) {
	cases := map[string]string{
		"https://example.com/files/report_final.pdf?token=xyz": "report_final.pdf",
		"https://example.com/files/":                           "",
		"https://example.com/%EC%B0%A8.hwp":                    "차.hwp",
	}
	for in, want := range cases {
		if got := LastSegment(in); got != want {
			t.Errorf("LastSegment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsScriptHref(t *testing.T) {
	if !IsScriptHref(" JavaScript:fnView('1')") {
		t.Fatal("expected script href")
	}
	if IsScriptHref("/view.do") {
		t.Fatal("plain href misdetected")
	}
}
