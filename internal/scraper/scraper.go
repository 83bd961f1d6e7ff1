// Package scraper is the data-acquisition adapter: it fetches listing and
// detail pages and turns them into validated, fully-typed observations. No
// scraping failure ever propagates into scoring; callers get a typed error
// and skip the cycle or the item.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/avaldezmx/promopulse/internal/config"
	"github.com/avaldezmx/promopulse/internal/models"
	"github.com/avaldezmx/promopulse/internal/util"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
)

// ErrUnderReview marks a deal page answering 404: the post is in moderation
// and may come back, so the caller should wait rather than deactivate.
var ErrUnderReview = errors.New("deal page under review")

// StatusError is a terminal HTTP condition (client error other than 404).
// The tracker treats it as the deal being dead or removed.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("terminal status %d fetching %s", e.Code, e.URL)
}

const (
	maxFetchRetries = 3
	userAgent       = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

	// Age assigned when the listing gives no readable posted time. Old enough
	// that the aging penalty and seed gate keep the item quiet.
	unknownAgeHours = 999.0
)

type Client struct {
	httpClient *http.Client
	validate   *validator.Validate
	limiter    *rate.Limiter
	cfg        *config.Config
}

func New(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		validate:   validator.New(),
		// One request every couple of seconds site-wide. Doubles as the
		// politeness delay between tracker items.
		limiter: rate.NewLimiter(rate.Every(cfg.FetchMinGap), 1),
		cfg:     cfg,
	}
}

// FetchNewDeals scrapes the "new deals" listing.
func (c *Client) FetchNewDeals(ctx context.Context) ([]models.Observation, error) {
	doc, err := c.fetchDocument(ctx, c.cfg.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("fetch new deals listing: %w", err)
	}
	return c.parseListing(doc), nil
}

// FetchHottest scrapes the site-wide "hottest" listing for the historian.
func (c *Client) FetchHottest(ctx context.Context) ([]models.Observation, error) {
	doc, err := c.fetchDocument(ctx, c.cfg.HottestURL)
	if err != nil {
		return nil, fmt.Errorf("fetch hottest listing: %w", err)
	}
	return c.parseListing(doc), nil
}

// FetchDealDetail re-fetches one deal's page for the tracker. Terminal HTTP
// conditions surface as ErrUnderReview or *StatusError.
func (c *Client) FetchDealDetail(ctx context.Context, url string) (*models.Observation, error) {
	doc, err := c.fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}
	obs, err := c.parseDetail(doc, url)
	if err != nil {
		return nil, fmt.Errorf("parse detail %s: %w", url, err)
	}
	return obs, nil
}

// fetchDocument GETs a page with backoff on transient failures. Client
// errors are terminal and never retried.
func (c *Client) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var doc *goquery.Document
	var terminalErr error
	err := util.RetryWithBackoff(ctx, maxFetchRetries, func(attempt int) error {
		if attempt > 0 {
			slog.Debug("Retrying fetch", "url", url, "attempt", attempt)
		}
		d, err := c.attemptFetch(ctx, url)
		if err != nil {
			var terminal *StatusError
			if errors.Is(err, ErrUnderReview) || errors.As(err, &terminal) {
				// Terminal conditions are not transient; stop retrying and
				// surface them unchanged.
				terminalErr = err
				return nil
			}
			return err
		}
		doc = d
		return nil
	})
	if terminalErr != nil {
		return nil, terminalErr
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Client) attemptFetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "es-MX,es;q=0.9,en;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", url, ErrUnderReview)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status %d fetching %s", resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("parse HTML from %s: %w", url, err)
	}
	return doc, nil
}
