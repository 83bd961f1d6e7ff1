package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with empty env: %v", err)
	}

	if cfg.SiteBaseURL != "https://www.promodescuentos.com" {
		t.Errorf("SiteBaseURL = %q", cfg.SiteBaseURL)
	}
	if cfg.ListingURL != cfg.SiteBaseURL+"/nuevas" {
		t.Errorf("ListingURL = %q", cfg.ListingURL)
	}
	if cfg.HottestURL != cfg.SiteBaseURL+"/las-mas-hot" {
		t.Errorf("HottestURL = %q", cfg.HottestURL)
	}
	if cfg.HunterIntervalMin != 5*time.Minute || cfg.HunterIntervalMax != 10*time.Minute {
		t.Errorf("hunter interval = [%v, %v]", cfg.HunterIntervalMin, cfg.HunterIntervalMax)
	}
	if cfg.TrackerBatchSize != 10 || cfg.FanOutLimit != 10 {
		t.Errorf("batch/fan-out = %d/%d, want 10/10", cfg.TrackerBatchSize, cfg.FanOutLimit)
	}
	if cfg.TunerInterval != 6*time.Hour {
		t.Errorf("TunerInterval = %v", cfg.TunerInterval)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_CHAT_IDS", " 100, 200 ,,300")
	t.Setenv("HUNTER_INTERVAL_MIN", "1m")
	t.Setenv("HUNTER_INTERVAL_MAX", "2m")
	t.Setenv("TRACKER_BATCH_SIZE", "25")
	t.Setenv("LISTING_URL", "https://example.com/list")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.TelegramBotToken != "123:abc" {
		t.Errorf("token = %q", cfg.TelegramBotToken)
	}
	want := []string{"100", "200", "300"}
	if len(cfg.AdminChatIDs) != len(want) {
		t.Fatalf("AdminChatIDs = %v, want %v", cfg.AdminChatIDs, want)
	}
	for i, id := range want {
		if cfg.AdminChatIDs[i] != id {
			t.Errorf("AdminChatIDs[%d] = %q, want %q", i, cfg.AdminChatIDs[i], id)
		}
	}
	if cfg.HunterIntervalMin != time.Minute || cfg.HunterIntervalMax != 2*time.Minute {
		t.Errorf("hunter interval = [%v, %v]", cfg.HunterIntervalMin, cfg.HunterIntervalMax)
	}
	if cfg.TrackerBatchSize != 25 {
		t.Errorf("TrackerBatchSize = %d", cfg.TrackerBatchSize)
	}
	if cfg.ListingURL != "https://example.com/list" {
		t.Errorf("ListingURL = %q", cfg.ListingURL)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("HUNTER_INTERVAL_MIN", "soon")
	if _, err := Load(); err == nil {
		t.Error("invalid duration must fail Load")
	}
}

func TestLoad_RejectsInvertedIntervals(t *testing.T) {
	t.Setenv("HUNTER_INTERVAL_MIN", "10m")
	t.Setenv("HUNTER_INTERVAL_MAX", "5m")
	if _, err := Load(); err == nil {
		t.Error("max below min must fail Load")
	}
}
