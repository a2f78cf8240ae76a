// Package collyfetcher retrieves pages with gocolly and derives their text,
// title and links.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/CarlaKobielski/projeto-antipirataria/internal/metrics"
)

// Request headers sent with every fetch.
const (
	DefaultUserAgent = "ProtecLiter-Bot/1.0 (+https://protecliter.com/bot)"
	acceptHeader     = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguage   = "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7"

	defaultTimeout       = 30 * time.Second
	defaultMaxTextLength = 50000
	defaultContentType   = "text/html"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	MaxTextLength int
}

// Page is a fetched document.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Headers     map[string]string
	HTML        []byte
	Text        string
	Title       string
	Links       []string
	Duration    time.Duration
}

// Fetcher issues single GET requests through a shared transport.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = defaultMaxTextLength
	}

	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.ParseHTTPErrorResponse = true
	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{cfg: cfg, transport: transport, baseCollector: c}
}

// Fetch GETs rawURL, following redirects. Non-2xx responses are returned
// as pages; callers decide what a status means.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	var (
		page     Page
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(ctx)
	f.configureCollectorHooks(collector, start, &page, &fetchErr)

	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return Page{}, err
	}
	page.URL = rawURL
	metrics.ObserveFetch(page.StatusCode, page.Duration)
	return page, nil
}

func (f *Fetcher) buildCollector(ctx context.Context) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.Context = ctx
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(f.transport)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	page *Page,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", f.cfg.UserAgent)
		r.Headers.Set("Accept", acceptHeader)
		r.Headers.Set("Accept-Language", acceptLanguage)
	})

	hooks.OnResponse(func(r *colly.Response) {
		finalURL := r.Request.URL
		content, err := Extract(r.Body, finalURL, f.cfg.MaxTextLength)
		if err != nil {
			*fetchErr = err
			return
		}
		contentType := r.Headers.Get("Content-Type")
		if contentType == "" {
			contentType = defaultContentType
		}
		*page = Page{
			FinalURL:    finalURL.String(),
			StatusCode:  r.StatusCode,
			ContentType: contentType,
			Headers:     flattenHeaders(*r.Headers),
			HTML:        append([]byte(nil), r.Body...),
			Text:        content.Text,
			Title:       content.Title,
			Links:       content.Links,
			Duration:    time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("fetch %s: %w", url, err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("fetch %s response: %w", url, *fetchErr)
		}
		return nil
	}
}

// flattenHeaders keeps the first value per canonical key.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		if len(values) > 0 {
			out[http.CanonicalHeaderKey(key)] = values[0]
		}
	}
	return out
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
