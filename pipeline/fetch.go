package pipeline

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// HTMLElement is one content-bearing element of the fetched page, in
// document order.
type HTMLElement struct {
	Tag  string
	Text string
}

// contentSelector lists the elements considered article body.
const contentSelector = "p, li, h1, h2, h3, blockquote, pre, td"

// Fetcher retrieves articles and extracts their text.
type Fetcher struct {
	client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: 30 * time.Second}}
}

// FetchArticle downloads the page and returns its content elements plus
// the joined article text. Any failure returns an error; the caller
// decides the report's fate.
func (f *Fetcher) FetchArticle(url string) ([]HTMLElement, string, error) {
	resp, err := f.client.Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", url, err)
	}
	doc.Find("script, style, nav, footer").Remove()

	var elements []HTMLElement
	var body []string
	doc.Find(contentSelector).Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		elements = append(elements, HTMLElement{
			Tag:  goquery.NodeName(sel),
			Text: text,
		})
		body = append(body, text)
	})

	if len(body) == 0 {
		return nil, "", fmt.Errorf("fetch %s: no article text", url)
	}
	return elements, strings.Join(body, "\n"), nil
}

// Probe issues a GET to verify the URL answers at all; used at submit
// time so unreachable URLs fail as validation, not mid-analysis.
func (f *Fetcher) Probe(url string) error {
	resp, err := f.client.Get(url)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Date layouts tried against candidate strings from the page.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02/01/2006",
}

// ExtractDate looks for a publication date in the document's time
// elements and meta tags. The zero time means no parseable date.
func ExtractDate(elements []HTMLElement, article string) time.Time {
	for _, elem := range elements {
		if t := parseDate(elem.Text); !t.IsZero() {
			return t
		}
	}
	for _, line := range strings.Split(article, "\n") {
		if t := parseDate(strings.TrimSpace(line)); !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}

func parseDate(s string) time.Time {
	if len(s) > 40 {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// DateInRange bounds accepted article dates: after the epoch, before five
// years from now.
func DateInRange(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	return t.Year() > 1970 && t.Before(time.Now().AddDate(5, 0, 0))
}
