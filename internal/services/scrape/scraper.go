package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/contexo-app/contexo/internal/common"
)

// Result holds the converted content of one scraped page
type Result struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Markdown  string    `json:"markdown"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Service fetches web pages and converts them to markdown for ingestion
// into the file registry. Static fetch by default; headless Chrome
// rendering when javascript is enabled in config.
type Service struct {
	config    *common.ScrapeConfig
	logger    arbor.ILogger
	client    *http.Client
	converter *md.Converter
}

func NewService(config *common.ScrapeConfig, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		logger: logger,
		client: &http.Client{
			Timeout: config.RequestTimeout,
		},
		converter: md.NewConverter("", true, nil),
	}
}

// Scrape fetches a page and returns its title and markdown content
func (s *Service) Scrape(ctx context.Context, rawURL string) (*Result, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid URL %q: must be http or https", rawURL)
	}

	s.logger.Info().
		Str("url", rawURL).
		Bool("javascript", s.config.EnableJavaScript).
		Msg("Scraping URL")

	var html string
	if s.config.EnableJavaScript {
		html, err = s.renderWithChrome(ctx, rawURL)
	} else {
		html, err = s.fetch(ctx, rawURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %s: %w", rawURL, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = parsed.Host
	}

	content := s.selectContent(doc)
	markdown, err := s.converter.ConvertString(content)
	if err != nil {
		return nil, fmt.Errorf("failed to convert page %s: %w", rawURL, err)
	}

	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return nil, fmt.Errorf("page %s produced no extractable content", rawURL)
	}

	return &Result{
		URL:       rawURL,
		Title:     title,
		Markdown:  markdown,
		FetchedAt: time.Now(),
	}, nil
}

// fetch performs a plain HTTP GET with the configured UA and body cap
func (s *Service) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(s.config.MaxBodySize)))
	if err != nil {
		return "", err
	}

	return string(body), nil
}

// renderWithChrome loads the page in headless Chrome and returns the DOM
// after the configured settle time, so javascript-built pages scrape the
// same as static ones
func (s *Service) renderWithChrome(ctx context.Context, rawURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(s.config.UserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	chromeCtx, cancelChrome := chromedp.NewContext(allocCtx)
	defer cancelChrome()

	chromeCtx, cancelTimeout := context.WithTimeout(chromeCtx, s.config.RequestTimeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(chromeCtx,
		chromedp.Navigate(rawURL),
		chromedp.Sleep(s.config.JavaScriptWaitTime),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("headless render failed: %w", err)
	}

	return html, nil
}

// selectContent picks the most content-dense region of the page. Falls
// back to body when no main/article element exists.
func (s *Service) selectContent(doc *goquery.Document) string {
	if s.config.OnlyMainContent {
		doc.Find("script, style, noscript, nav, header, footer, aside, iframe, form").Remove()
	}

	for _, selector := range []string{"main", "article", "[role=main]", "#content", ".content"} {
		sel := doc.Find(selector).First()
		if sel.Length() > 0 {
			if html, err := goquery.OuterHtml(sel); err == nil && len(strings.TrimSpace(sel.Text())) > 200 {
				return html
			}
		}
	}

	if html, err := doc.Find("body").Html(); err == nil && strings.TrimSpace(html) != "" {
		return html
	}

	html, _ := doc.Html()
	return html
}
