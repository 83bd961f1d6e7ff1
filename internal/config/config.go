package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-level configuration, read once at startup from the
// environment (plus an optional .env for local runs). The scoring engine's
// numeric thresholds are NOT here; those live in the system_config table and
// hot-reload through the tuner.
type Config struct {
	TelegramBotToken string
	AdminChatIDs     []string

	DatabasePath string
	Port         string

	SiteBaseURL string
	ListingURL  string
	HottestURL  string

	HunterIntervalMin    time.Duration
	HunterIntervalMax    time.Duration
	TrackerInterval      time.Duration
	TrackerBatchSize     int
	HistorianIntervalMin time.Duration
	HistorianIntervalMax time.Duration
	TunerInterval        time.Duration

	FetchMinGap      time.Duration
	FanOutLimit      int
	MaxFetchFailures int
}

func Load() (*Config, error) {
	// Local convenience only; in production the environment is the source.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Could not read .env file", "error", err)
	}

	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabasePath:     envOr("DATABASE_PATH", "data/promopulse.db"),
		Port:             envOr("PORT", "8080"),
		SiteBaseURL:      envOr("SITE_BASE_URL", "https://www.promodescuentos.com"),
	}
	if cfg.TelegramBotToken == "" {
		slog.Warn("TELEGRAM_BOT_TOKEN not set, notifications will be skipped")
	}

	cfg.ListingURL = envOr("LISTING_URL", cfg.SiteBaseURL+"/nuevas")
	cfg.HottestURL = envOr("HOTTEST_URL", cfg.SiteBaseURL+"/las-mas-hot")

	for _, id := range strings.Split(os.Getenv("ADMIN_CHAT_IDS"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.AdminChatIDs = append(cfg.AdminChatIDs, id)
		}
	}

	var err error
	if cfg.HunterIntervalMin, err = durationOr("HUNTER_INTERVAL_MIN", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.HunterIntervalMax, err = durationOr("HUNTER_INTERVAL_MAX", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.TrackerInterval, err = durationOr("TRACKER_INTERVAL", 90*time.Second); err != nil {
		return nil, err
	}
	if cfg.HistorianIntervalMin, err = durationOr("HISTORIAN_INTERVAL_MIN", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.HistorianIntervalMax, err = durationOr("HISTORIAN_INTERVAL_MAX", 4*time.Hour); err != nil {
		return nil, err
	}
	if cfg.TunerInterval, err = durationOr("TUNER_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.FetchMinGap, err = durationOr("FETCH_MIN_GAP", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.TrackerBatchSize, err = intOr("TRACKER_BATCH_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.FanOutLimit, err = intOr("FAN_OUT_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.MaxFetchFailures, err = intOr("MAX_FETCH_FAILURES", 5); err != nil {
		return nil, err
	}

	if cfg.HunterIntervalMax < cfg.HunterIntervalMin {
		return nil, fmt.Errorf("HUNTER_INTERVAL_MAX %v is below HUNTER_INTERVAL_MIN %v",
			cfg.HunterIntervalMax, cfg.HunterIntervalMin)
	}
	if cfg.HistorianIntervalMax < cfg.HistorianIntervalMin {
		return nil, fmt.Errorf("HISTORIAN_INTERVAL_MAX %v is below HISTORIAN_INTERVAL_MIN %v",
			cfg.HistorianIntervalMax, cfg.HistorianIntervalMin)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func intOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
