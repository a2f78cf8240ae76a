package collyfetcher

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Content is the text view of an HTML document.
type Content struct {
	Text  string
	Title string
	Links []string
}

// Extract strips non-content elements and returns collapsed body text, the
// first title and absolute hyperlinks resolved against base.
func Extract(html []byte, base *url.URL, maxText int) (Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Content{}, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, iframe").Remove()

	content := Content{
		Text:  Truncate(strings.Join(strings.Fields(doc.Find("body").Text()), " "), maxText),
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Links: []string{},
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		content.Links = append(content.Links, ref.String())
	})
	return content, nil
}

// Truncate caps s at max runes. A non-positive max disables the cap.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
