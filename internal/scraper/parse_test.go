package scraper

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/avaldezmx/promopulse/internal/config"
)

func testClient() *Client {
	return New(&config.Config{
		SiteBaseURL: "https://www.promodescuentos.com",
		FetchMinGap: time.Millisecond,
	})
}

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

// vuePayload builds the hydration JSON a listing article embeds.
func vuePayload(t *testing.T, title, slug string, id int64, temp float64, publishedAt time.Time) string {
	t.Helper()
	payload := map[string]any{
		"name": "ThreadMainListItemNormalizer",
		"props": map[string]any{
			"thread": map[string]any{
				"title":       title,
				"titleSlug":   slug,
				"threadId":    id,
				"temperature": temp,
				"publishedAt": publishedAt.Unix(),
				"merchant":    map[string]any{"merchantName": "Amazon"},
			},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return strings.ReplaceAll(string(raw), `"`, "&quot;")
}

func TestParseListing_VuePayload(t *testing.T) {
	posted := time.Now().Add(-30 * time.Minute)
	html := `<html><body>
		<article class="thread">
			<div class="js-vue3" data-vue3="` + vuePayload(t, "Laptop Gamer 40% off", "laptop-gamer", 12345, 256, posted) + `"></div>
			<div class="thread-price">$12,999</div>
			<img class="thread-image" data-src="//img.example.com/laptop.jpg">
		</article>
	</body></html>`

	obs := testClient().parseListing(docFrom(t, html))
	if len(obs) != 1 {
		t.Fatalf("want 1 observation, got %d", len(obs))
	}

	got := obs[0]
	if got.Title != "Laptop Gamer 40% off" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.URL != "https://www.promodescuentos.com/ofertas/laptop-gamer-12345" {
		t.Errorf("URL = %q", got.URL)
	}
	if got.Temperature != 256 {
		t.Errorf("Temperature = %v, want 256", got.Temperature)
	}
	if got.Merchant != "Amazon" {
		t.Errorf("Merchant = %q", got.Merchant)
	}
	if got.HoursSincePosted < 0.45 || got.HoursSincePosted > 0.55 {
		t.Errorf("HoursSincePosted = %v, want ~0.5", got.HoursSincePosted)
	}
	if got.PriceDisplay != "$12,999" {
		t.Errorf("PriceDisplay = %q", got.PriceDisplay)
	}
	if got.ImageURL != "https://img.example.com/laptop.jpg" {
		t.Errorf("ImageURL = %q", got.ImageURL)
	}
}

func TestParseListing_HTMLFallback(t *testing.T) {
	html := `<html><body>
		<article class="thread">
			<strong class="thread-title"><a href="/ofertas/audifonos-777">Audífonos BT</a></strong>
			<span class="vote-temp">189°</span>
			<span class="chip"><span class="size--all-s">hace 45 min</span></span>
			<span class="thread-merchant">Mercado Libre</span>
		</article>
	</body></html>`

	obs := testClient().parseListing(docFrom(t, html))
	if len(obs) != 1 {
		t.Fatalf("want 1 observation, got %d", len(obs))
	}

	got := obs[0]
	if got.URL != "https://www.promodescuentos.com/ofertas/audifonos-777" {
		t.Errorf("URL = %q", got.URL)
	}
	if got.Temperature != 189 {
		t.Errorf("Temperature = %v, want 189", got.Temperature)
	}
	if got.HoursSincePosted != 0.75 {
		t.Errorf("HoursSincePosted = %v, want 0.75", got.HoursSincePosted)
	}
	if got.Merchant != "Mercado Libre" {
		t.Errorf("Merchant = %q", got.Merchant)
	}
}

func TestParseListing_SkipsMalformedAndDedups(t *testing.T) {
	html := `<html><body>
		<article class="thread"><span class="vote-temp">50°</span></article>
		<article class="thread">
			<strong class="thread-title"><a href="/ofertas/valid-1">Valid</a></strong>
			<span class="vote-temp">60°</span>
			<span class="chip"><span class="size--all-s">hace 1 h</span></span>
		</article>
		<article class="thread">
			<strong class="thread-title"><a href="/ofertas/valid-1">Valid duplicate</a></strong>
			<span class="vote-temp">60°</span>
			<span class="chip"><span class="size--all-s">hace 1 h</span></span>
		</article>
	</body></html>`

	obs := testClient().parseListing(docFrom(t, html))
	if len(obs) != 1 {
		t.Fatalf("want 1 observation after skip and dedup, got %d", len(obs))
	}
}

func TestParseDetail_ExpiredMarker(t *testing.T) {
	html := `<html><body>
		<h1 class="thread-title">Pantalla 4K</h1>
		<span class="vote-temp">320°</span>
		<div class="thread-meta">Expiró hace 2 h</div>
	</body></html>`

	obs, err := testClient().parseDetail(docFrom(t, html), "https://www.promodescuentos.com/ofertas/pantalla-4k-55")
	if err != nil {
		t.Fatalf("parseDetail: %v", err)
	}
	if obs.Title != "Pantalla 4K" || obs.Temperature != 320 {
		t.Errorf("detail = %+v", obs)
	}
	if !obs.Expired {
		t.Error("expiry marker not detected")
	}
}
