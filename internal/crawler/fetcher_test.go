package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Refund Policy</title><style>body { color: red; }</style></head>
<body>
<nav><a href="/">Home</a></nav>
<h1>Refund Policy</h1>
<p>Refunds are processed within 14 days.</p>
<script>console.log("tracking")</script>
<ul><li>Keep your receipt.</li></ul>
<footer>Copyright 2026</footer>
</body>
</html>`

func TestFetchExtractsVisibleText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	f := NewFetcher(10 * time.Second)
	text, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	for _, want := range []string{"Refund Policy", "Refunds are processed within 14 days.", "Keep your receipt."} {
		if !strings.Contains(text, want) {
			t.Errorf("extracted text missing %q\ngot: %s", want, text)
		}
	}
	for _, reject := range []string{"console.log", "color: red", "Copyright 2026", "Home"} {
		if strings.Contains(text, reject) {
			t.Errorf("extracted text should not contain %q\ngot: %s", reject, text)
		}
	}
}

func TestFetchRejectsNonHTTPScheme(t *testing.T) {
	f := NewFetcher(time.Second)
	if _, err := f.Fetch(context.Background(), "ftp://example.com/doc"); err == nil {
		t.Fatal("expected error for non-http scheme")
	}
}

func TestFetchRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	f := NewFetcher(time.Second)
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
