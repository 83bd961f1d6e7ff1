// Package notifier delivers viral-deal alerts over the Telegram Bot API with
// a bounded concurrent fan-out: a fixed number of in-flight sends, and one
// recipient's failure never blocks or cancels the rest.
package notifier

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/semaphore"

	"github.com/avaldezmx/promopulse/internal/models"
)

// Sender is the slice of the Telegram bot the notifier uses. *tgbotapi.BotAPI
// satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier struct {
	sender Sender
	sem    *semaphore.Weighted
}

// NewTelegram builds a notifier backed by the real bot API. An empty token
// yields a disabled notifier that drops every broadcast with a warning.
func NewTelegram(token string, fanOutLimit int) (*Notifier, error) {
	if token == "" {
		return New(nil, fanOutLimit), nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)
	return New(bot, fanOutLimit), nil
}

// New wraps any Sender. Used directly by tests.
func New(sender Sender, fanOutLimit int) *Notifier {
	if fanOutLimit < 1 {
		fanOutLimit = 1
	}
	return &Notifier{
		sender: sender,
		sem:    semaphore.NewWeighted(int64(fanOutLimit)),
	}
}

// Broadcast sends the alert for one deal to every chat ID, at most
// fanOutLimit sends in flight at a time. Returns how many deliveries
// succeeded; individual failures are logged and skipped.
func (n *Notifier) Broadcast(ctx context.Context, deal *models.Deal, obs models.Observation, res models.AnalysisResult, chatIDs []string) int {
	if n.sender == nil {
		slog.Warn("Notifier disabled, dropping broadcast", "url", deal.URL, "recipients", len(chatIDs))
		return 0
	}
	if len(chatIDs) == 0 {
		return 0
	}

	text := formatAlert(deal, obs, res)

	var wg sync.WaitGroup
	var sent int64
	var mu sync.Mutex
	for _, raw := range chatIDs {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			slog.Warn("Skipping malformed chat ID", "chat_id", raw, "error", err)
			continue
		}
		if err := n.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			defer n.sem.Release(1)
			if err := n.sendOne(chatID, deal.ImageURL, text); err != nil {
				slog.Error("Telegram delivery failed", "chat_id", chatID, "url", deal.URL, "error", err)
				return
			}
			mu.Lock()
			sent++
			mu.Unlock()
		}(chatID)
	}
	wg.Wait()

	slog.Info("Broadcast complete",
		"url", deal.URL, "rating", res.Rating, "recipients", len(chatIDs), "sent", sent)
	return int(sent)
}

// sendOne prefers a photo message when the deal has an image and falls back
// to plain text when the photo send is rejected (dead image URLs are common).
func (n *Notifier) sendOne(chatID int64, imageURL, text string) error {
	if imageURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(imageURL))
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeHTML
		if _, err := n.sender.Send(photo); err == nil {
			return nil
		}
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = imageURL != ""
	_, err := n.sender.Send(msg)
	return err
}

func formatAlert(deal *models.Deal, obs models.Observation, res models.AnalysisResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s <b>%s</b>\n\n", strings.Repeat("🔥", max(res.Rating, 1)), html.EscapeString(deal.Title))
	fmt.Fprintf(&b, "🌡 <b>%.0f°</b> · score %.0f\n", obs.Temperature, res.FinalScore)
	if deal.Merchant != "" {
		fmt.Fprintf(&b, "🏪 %s\n", html.EscapeString(deal.Merchant))
	}
	if obs.PriceDisplay != "" {
		fmt.Fprintf(&b, "💰 %s\n", html.EscapeString(obs.PriceDisplay))
	}
	fmt.Fprintf(&b, "⏱ %s\n", formatAge(obs.HoursSincePosted))
	fmt.Fprintf(&b, "\n<a href=\"%s\">Ver oferta</a>", deal.URL)

	return b.String()
}

func formatAge(hours float64) string {
	d := time.Duration(hours * float64(time.Hour))
	if d < time.Hour {
		return fmt.Sprintf("hace %d min", int(d.Minutes()))
	}
	if d < 48*time.Hour {
		return fmt.Sprintf("hace %.1f h", d.Hours())
	}
	return fmt.Sprintf("hace %d días", int(d.Hours()/24))
}
