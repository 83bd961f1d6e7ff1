package scraper

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/avaldezmx/promopulse/internal/models"
	"github.com/avaldezmx/promopulse/internal/util"
)

// vueThread mirrors the props the listing embeds for each thread in its
// client-side hydration payload. Preferred over the rendered HTML because it
// carries exact temperature and publish epoch.
type vueThread struct {
	Name  string `json:"name"`
	Props struct {
		Thread struct {
			Title         string  `json:"title"`
			TitleSlug     string  `json:"titleSlug"`
			ThreadID      int64   `json:"threadId"`
			ShareableLink string  `json:"shareableLink"`
			Temperature   float64 `json:"temperature"`
			PublishedAt   int64   `json:"publishedAt"`
			Merchant      struct {
				MerchantName string `json:"merchantName"`
			} `json:"merchant"`
		} `json:"thread"`
	} `json:"props"`
}

// parseListing extracts one observation per listing article. Malformed
// items are logged and skipped; the rest of the batch continues.
func (c *Client) parseListing(doc *goquery.Document) []models.Observation {
	var observations []models.Observation
	seen := make(map[string]bool)

	doc.Find("article.thread").Each(func(i int, art *goquery.Selection) {
		obs, ok := c.extractObservation(art)
		if !ok {
			return
		}
		if seen[obs.URL] {
			return
		}
		if err := c.validate.Struct(obs); err != nil {
			slog.Warn("Skipping malformed listing item",
				"index", i, "url", obs.URL, "title", obs.Title, "error", err)
			return
		}
		seen[obs.URL] = true
		observations = append(observations, obs)
	})

	return observations
}

func (c *Client) extractObservation(art *goquery.Selection) (models.Observation, bool) {
	var obs models.Observation

	vue, hasVue := extractVueThread(art)
	if hasVue {
		obs.Title = vue.Props.Thread.Title
		obs.URL = vueThreadURL(vue)
		obs.Temperature = vue.Props.Thread.Temperature
		obs.Merchant = vue.Props.Thread.Merchant.MerchantName
		if epoch := vue.Props.Thread.PublishedAt; epoch > 0 {
			obs.PublishedAt = time.Unix(epoch, 0)
			obs.HoursSincePosted = time.Since(obs.PublishedAt).Hours()
			if obs.HoursSincePosted < 0 {
				obs.HoursSincePosted = 0
			}
		} else {
			obs.HoursSincePosted = unknownAgeHours
		}
	}

	// HTML fallbacks fill whatever the hydration payload didn't.
	if obs.Title == "" || obs.URL == "" {
		link := art.Find("strong.thread-title a, a.thread-link").First()
		if link.Length() == 0 {
			return obs, false
		}
		obs.Title = strings.TrimSpace(link.Text())
		obs.URL = absoluteURL(link.AttrOr("href", ""), c.cfg.SiteBaseURL)
	}
	if obs.URL == "" || obs.Title == "" {
		return obs, false
	}

	if !hasVue {
		obs.Temperature = util.ParseTemperature(art.Find(".vote-temp").First().Text())
		age := art.Find("span.chip span.size--all-s").First().Text()
		obs.HoursSincePosted = util.ParseRelativeHours(age, unknownAgeHours)
	}
	if obs.Merchant == "" {
		merchant := art.Find(`a[data-t="merchantLink"], span.thread-merchant`).First().Text()
		obs.Merchant = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(merchant), "Disponible en"))
	}

	obs.PriceDisplay = strings.TrimSpace(art.Find(".thread-price").First().Text())

	if img := art.Find("img.thread-image").First(); img.Length() > 0 {
		src := img.AttrOr("data-src", img.AttrOr("src", ""))
		if strings.HasPrefix(src, "//") {
			src = "https:" + src
		}
		obs.ImageURL = src
	}

	obs.PostedText = strings.TrimSpace(art.Find(".thread-meta").First().Text())
	obs.Expired = util.IsExpiredText(obs.PostedText)

	return obs, true
}

// parseDetail extracts the tracker's view of a single deal page.
func (c *Client) parseDetail(doc *goquery.Document, url string) (*models.Observation, error) {
	obs := models.Observation{URL: url}

	obs.Title = strings.TrimSpace(doc.Find("h1.thread-title, .thread-title span").First().Text())
	obs.Temperature = util.ParseTemperature(doc.Find(".vote-temp").First().Text())
	obs.PostedText = strings.TrimSpace(doc.Find(".thread-meta").First().Text())

	statusText := strings.TrimSpace(doc.Find(".threadItem-statusRow, .thread-status").First().Text())
	obs.Expired = util.IsExpiredText(obs.PostedText) || util.IsExpiredText(statusText)

	if vue, ok := extractVueThread(doc.Selection); ok {
		if obs.Title == "" {
			obs.Title = vue.Props.Thread.Title
		}
		if vue.Props.Thread.Temperature > obs.Temperature {
			obs.Temperature = vue.Props.Thread.Temperature
		}
		if epoch := vue.Props.Thread.PublishedAt; epoch > 0 {
			obs.PublishedAt = time.Unix(epoch, 0)
			obs.HoursSincePosted = time.Since(obs.PublishedAt).Hours()
			if obs.HoursSincePosted < 0 {
				obs.HoursSincePosted = 0
			}
		}
	}

	if obs.Title == "" {
		obs.Title = url
	}
	if err := c.validate.Struct(obs); err != nil {
		return nil, err
	}
	return &obs, nil
}

func extractVueThread(sel *goquery.Selection) (vueThread, bool) {
	var thread vueThread
	found := false
	sel.Find("div.js-vue3[data-vue3]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		raw, ok := el.Attr("data-vue3")
		if !ok {
			return true
		}
		var candidate vueThread
		if err := json.Unmarshal([]byte(raw), &candidate); err != nil {
			return true
		}
		if candidate.Name != "ThreadMainListItemNormalizer" {
			return true
		}
		thread = candidate
		found = true
		return false
	})
	return thread, found
}

func vueThreadURL(vue vueThread) string {
	t := vue.Props.Thread
	if t.TitleSlug != "" && t.ThreadID > 0 {
		return "https://www.promodescuentos.com/ofertas/" + t.TitleSlug + "-" + strconv.FormatInt(t.ThreadID, 10)
	}
	return t.ShareableLink
}

func absoluteURL(href, base string) string {
	if strings.HasPrefix(href, "/") {
		return strings.TrimSuffix(base, "/") + href
	}
	return href
}
