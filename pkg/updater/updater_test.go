package updater

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewer(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		current   string
		expected  bool
	}{
		{"equal versions", "v1.0.0", "v1.0.0", false},
		{"greater major", "v2.0.0", "v1.0.0", true},
		{"less major", "v1.0.0", "v2.0.0", false},
		{"greater minor", "v1.1.0", "v1.0.0", true},
		{"greater patch", "v1.0.1", "v1.0.0", true},
		{"double digit minor", "v0.10.0", "v0.9.0", true},
		{"no v prefix", "2.0.0", "1.0.0", true},
		{"mixed prefix equal", "v1.0.0", "1.0.0", false},
		{"release beats prerelease", "v1.0.0", "v1.0.0-rc.1", true},
		{"prerelease below release", "v1.0.0-rc.1", "v1.0.0", false},
		{"prerelease labels", "v1.0.0-beta", "v1.0.0-alpha", true},
		{"invalid candidate", "latest", "v1.0.0", false},
		{"invalid current", "v1.0.0", "dev", true},
		{"empty candidate", "", "v1.0.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Newer(tt.candidate, tt.current); got != tt.expected {
				t.Errorf("Newer(%q, %q) = %v; want %v", tt.candidate, tt.current, got, tt.expected)
			}
		})
	}
}

func newTestChecker(t *testing.T, status int, body string) *Checker {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request without User-Agent")
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return &Checker{Client: srv.Client(), URL: srv.URL}
}

func TestCheck_UpdateAvailable(t *testing.T) {
	c := newTestChecker(t, http.StatusOK, `{"tag_name":"v9.0.0","html_url":"https://example.com/r"}`)

	rel, newer, err := c.Check(context.Background(), "v0.3.0")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !newer {
		t.Error("expected an update")
	}
	if rel.TagName != "v9.0.0" || rel.HTMLURL != "https://example.com/r" {
		t.Errorf("unexpected release %+v", rel)
	}
}

func TestCheck_UpToDate(t *testing.T) {
	c := newTestChecker(t, http.StatusOK, `{"tag_name":"v0.3.0"}`)

	_, newer, err := c.Check(context.Background(), "v0.3.0")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if newer {
		t.Error("same version reported as update")
	}
}

func TestCheck_RateLimitedIsNotAnError(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusTooManyRequests} {
		c := newTestChecker(t, status, `{}`)
		_, newer, err := c.Check(context.Background(), "v0.3.0")
		if err != nil || newer {
			t.Errorf("status %d: newer=%v err=%v", status, newer, err)
		}
	}
}

func TestCheck_ServerError(t *testing.T) {
	c := newTestChecker(t, http.StatusInternalServerError, `oops`)
	if _, _, err := c.Check(context.Background(), "v0.3.0"); err == nil {
		t.Error("expected error for 500")
	}
}

func TestCheck_BadJSON(t *testing.T) {
	c := newTestChecker(t, http.StatusOK, `{not json`)
	if _, _, err := c.Check(context.Background(), "v0.3.0"); err == nil {
		t.Error("expected decode error")
	}
}

func TestCheck_CancelledContext(t *testing.T) {
	c := newTestChecker(t, http.StatusOK, `{"tag_name":"v9.0.0"}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := c.Check(ctx, "v0.3.0"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
