package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"

	"listing-crawler/internal/logging"
	"listing-crawler/pkg/models"
)

// Row layouts
const (
	// LayoutTable is a torrent index table: one <tr> per listing, keyed by
	// its torrent download link.
	LayoutTable = "table"
	// LayoutForum is a forum thread list: one <li> per thread, keyed by the
	// absolute link of its detail page.
	LayoutForum = "forum"
)

const (
	DefaultRowsSelector      = "table tbody tr"
	DefaultHeaderRows        = 2
	DefaultForumRowsSelector = "#waterfall > li"
	DefaultPagePattern       = "/?p={page}"
	DefaultUserAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ErrStatus is returned for a non-200 response
var ErrStatus = errors.New("unexpected status code")

// Config holds the site layout and HTTP settings of a fetcher
type Config struct {
	BaseURL      string
	PagePattern  string
	// Layout is LayoutTable (default) or LayoutForum. When RowsSelector is
	// empty, the layout's own selector and header row count are used.
	Layout       string
	RowsSelector string
	HeaderRows   int
	ProxyURL     string
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

// Fetcher downloads listing pages and extracts their rows
type Fetcher struct {
	Client *http.Client
	cfg    Config
	logger zerolog.Logger
}

// NewFetcher creates a fetcher with a proxy-aware HTTP client
func NewFetcher(cfg Config) (*Fetcher, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.PagePattern == "" {
		cfg.PagePattern = DefaultPagePattern
	}
	switch cfg.Layout {
	case "", LayoutTable:
		cfg.Layout = LayoutTable
		if cfg.RowsSelector == "" {
			cfg.RowsSelector, cfg.HeaderRows = DefaultRowsSelector, DefaultHeaderRows
		}
	case LayoutForum:
		if cfg.RowsSelector == "" {
			cfg.RowsSelector, cfg.HeaderRows = DefaultForumRowsSelector, 0
		}
	default:
		return nil, fmt.Errorf("unknown row layout %q", cfg.Layout)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	logger := logging.NewLogger("crawler")
	client, err := NewHTTPClient(cfg.ProxyURL, cfg.Timeout, logger)
	if err != nil {
		return nil, err
	}

	return &Fetcher{Client: client, cfg: cfg, logger: logger}, nil
}

// NewHTTPClient builds an HTTP client, routed through a SOCKS5 or HTTP proxy
// when proxyURL is set
func NewHTTPClient(proxyURL string, timeout time.Duration, logger zerolog.Logger) (*http.Client, error) {
	client := &http.Client{
		Timeout: timeout,
	}

	if proxyURL == "" {
		logger.Info().Msg("No proxy configured, using direct connection")
		return client, nil
	}

	proxyURLParsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy URL: %w", err)
	}

	if proxyURLParsed.Scheme == "socks5" {
		dialer, err := proxy.FromURL(proxyURLParsed, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("create SOCKS5 dialer: %w", err)
		}
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("SOCKS5 dialer does not support contexts")
		}
		client.Transport = &http.Transport{
			DialContext: contextDialer.DialContext,
		}
	} else {
		// For HTTP/HTTPS proxies
		client.Transport = &http.Transport{
			Proxy: http.ProxyURL(proxyURLParsed),
		}
	}
	logger.Info().Str("proxy", proxyURLParsed.Redacted()).Msg("Using proxy")

	return client, nil
}

// PageURL returns the address of a listing page; page 1 is the base URL
func (f *Fetcher) PageURL(page int) string {
	if page <= 1 {
		return f.cfg.BaseURL
	}
	base := strings.TrimRight(f.cfg.BaseURL, "/")
	return base + strings.ReplaceAll(f.cfg.PagePattern, "{page}", strconv.Itoa(page))
}

// FetchPage downloads and parses one page, retrying failed attempts
func (f *Fetcher) FetchPage(ctx context.Context, page int) (models.PageResult, error) {
	pageURL := f.PageURL(page)
	logger := f.logger.With().Int("page", page).Str("url", pageURL).Logger()

	var listings []models.Listing
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		listings, err = f.scrape(ctx, pageURL)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("Fetch failed, retrying")
	}

	if err := backoff.RetryNotify(operation, f.newBackOff(ctx), notify); err != nil {
		return models.PageResult{}, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}

	logger.Debug().Int("items", len(listings)).Msg("Page parsed")
	return models.PageResult{Page: page, URL: pageURL, Listings: listings}, nil
}

func (f *Fetcher) newBackOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = backoff.NewConstantBackOff(f.cfg.RetryDelay)
	if f.cfg.MaxRetries >= 0 {
		b = backoff.WithMaxRetries(b, uint64(f.cfg.MaxRetries))
	}
	return backoff.WithContext(b, ctx)
}

func (f *Fetcher) scrape(ctx context.Context, pageURL string) ([]models.Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d %s", ErrStatus, resp.StatusCode, resp.Status)
	}

	if f.cfg.Layout == LayoutForum {
		return ParseForumThreads(resp.Body, f.cfg.RowsSelector, f.cfg.HeaderRows, pageURL)
	}
	return ParseListings(resp.Body, f.cfg.RowsSelector, f.cfg.HeaderRows)
}

// ParseListings extracts listings from an HTML document. The first
// headerRows matched rows are skipped, as are rows without a torrent link
func ParseListings(r io.Reader, rowsSelector string, headerRows int) ([]models.Listing, error) {
	return parseRows(r, rowsSelector, headerRows, parseListingRow)
}

// ParseForumThreads extracts forum threads from an HTML document. Each
// thread's key is its h3 link resolved against the origin of pageURL; rows
// without a link are skipped
func ParseForumThreads(r io.Reader, rowsSelector string, headerRows int, pageURL string) ([]models.Listing, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page URL: %w", err)
	}
	origin := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}

	return parseRows(r, rowsSelector, headerRows, func(row *goquery.Selection) *models.Listing {
		return parseForumRow(row, origin)
	})
}

func parseRows(r io.Reader, rowsSelector string, headerRows int, parse func(*goquery.Selection) *models.Listing) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	listings := []models.Listing{}
	doc.Find(rowsSelector).Each(func(i int, s *goquery.Selection) {
		if i < headerRows {
			return
		}
		if listing := parse(s); listing != nil {
			listings = append(listings, *listing)
		}
	})
	return listings, nil
}

// parseForumRow reads the title and detail link of one thread
func parseForumRow(row *goquery.Selection, origin *url.URL) *models.Listing {
	href, ok := row.Find("h3 a").First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || href == "#" {
		return nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil
	}

	listing := &models.Listing{
		Title:       strings.TrimSpace(row.Find("h3").First().Text()),
		TorrentHref: origin.ResolveReference(ref).String(),
	}
	if html, err := goquery.OuterHtml(row); err == nil {
		listing.HTML = html
	}
	return listing
}

// parseListingRow parses a single table row to extract listing information
func parseListingRow(row *goquery.Selection) *models.Listing {
	listing := &models.Listing{}

	// Category from the link title in the first column
	if catTitle, exists := row.Find("td:first-child a").First().Attr("title"); exists {
		listing.Category = catTitle
	}

	// For rows with comments, the title link is the second one
	titleLinks := row.Find("td:nth-child(2) a")
	titleLink := titleLinks.First()
	if href, ok := titleLink.Attr("href"); ok && strings.Contains(href, "#comments") && titleLinks.Length() > 1 {
		titleLink = titleLinks.Eq(1)
	}
	listing.Title = strings.TrimSpace(titleLink.Text())

	// Third column holds the torrent download and the magnet link
	row.Find("td:nth-child(3) a").Each(func(i int, link *goquery.Selection) {
		href, exists := link.Attr("href")
		if !exists {
			return
		}
		switch {
		case strings.HasPrefix(href, "magnet:"):
			if listing.MagnetHref == "" {
				listing.MagnetHref = href
			}
		case listing.TorrentHref == "":
			listing.TorrentHref = href
		}
	})

	listing.Size = strings.TrimSpace(row.Find("td:nth-child(4)").Text())
	listing.Date = strings.TrimSpace(row.Find("td:nth-child(5)").Text())

	if html, err := goquery.OuterHtml(row); err == nil {
		listing.HTML = html
	}

	// Validate that we got a key
	if listing.TorrentHref == "" {
		return nil
	}
	return listing
}
