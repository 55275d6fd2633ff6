package crawler

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/oyounis19/beyond-rag/utils"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// Fetcher pulls a single page and extracts its visible text. Depth is fixed
// at one page; link following is out of scope for ingestion.
type Fetcher struct {
	http *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		http: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the page and returns its visible text with script, style
// and navigation chrome stripped.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return "", utils.NewError(utils.KindBadInput, "url must start with http:// or https://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", utils.WrapError(utils.KindBadInput, "build url request", err)
	}
	req.Header.Set("User-Agent", "beyond-rag/1.0")

	resp, err := f.http.Do(req)
	if err != nil {
		return "", utils.WrapError(utils.KindParse, "fetch url", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", utils.NewError(utils.KindParse,
			fmt.Sprintf("url returned status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", utils.WrapError(utils.KindParse, "parse html", err)
	}

	return ExtractText(doc), nil
}

// ExtractText pulls the human-visible text out of a parsed page.
func ExtractText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer, header, iframe").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var sb strings.Builder
	root.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	})

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		// Pages without semantic markup still get their raw body text.
		text = strings.TrimSpace(root.Text())
	}

	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
