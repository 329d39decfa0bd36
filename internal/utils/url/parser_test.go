package urlutil

import "testing"

func TestValidate(t *testing.T) {
	valid := []string{
		"http://example.com",
		"https://rehelv-acrd.tpsgc-pwgsc.gc.ca/lth-crl-eng.aspx",
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

func TestWithQuery(t *testing.T) {
	got, err := WithQuery("https://www.njc-cnm.gc.ca/directive/app_d/en", map[string]string{"let": "B"}, map[string]string{"lang": "en"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://www.njc-cnm.gc.ca/directive/app_d/en?lang=en&let=B" {
		t.Errorf("got %s", got)
	}

	got, _ = WithQuery("https://x.example/p?lang=fr", nil, map[string]string{"lang": "en"})
	if got != "https://x.example/p?lang=fr" {
		t.Errorf("defaults must not override existing params, got %s", got)
	}
}

func TestResolveURL(t *testing.T) {
	if got := ResolveURL("https://x.example/a/b", "../c"); got != "https://x.example/c" {
		t.Errorf("got %s", got)
	}
}
