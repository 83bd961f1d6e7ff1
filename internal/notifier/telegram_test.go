package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/avaldezmx/promopulse/internal/models"
)

// mockSender counts in-flight sends with artificial latency so the fan-out
// bound is observable.
type mockSender struct {
	latency time.Duration
	failFor map[int64]error

	mu        sync.Mutex
	inFlight  int64
	peak      int64
	delivered []tgbotapi.Chattable
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	cur := atomic.AddInt64(&m.inFlight, 1)
	defer atomic.AddInt64(&m.inFlight, -1)

	m.mu.Lock()
	if cur > m.peak {
		m.peak = cur
	}
	m.mu.Unlock()

	if m.latency > 0 {
		time.Sleep(m.latency)
	}

	if err, ok := m.failFor[chatIDof(c)]; ok {
		return tgbotapi.Message{}, err
	}

	m.mu.Lock()
	m.delivered = append(m.delivered, c)
	m.mu.Unlock()
	return tgbotapi.Message{}, nil
}

func chatIDof(c tgbotapi.Chattable) int64 {
	switch msg := c.(type) {
	case tgbotapi.MessageConfig:
		return msg.ChatID
	case tgbotapi.PhotoConfig:
		return msg.ChatID
	}
	return 0
}

func fixtureDeal() (*models.Deal, models.Observation, models.AnalysisResult) {
	deal := &models.Deal{
		URL:      "https://example.com/ofertas/switch-999",
		Title:    "Nintendo Switch <OLED>",
		Merchant: "Amazon",
	}
	obs := models.Observation{
		URL:              deal.URL,
		Title:            deal.Title,
		Temperature:      412,
		HoursSincePosted: 0.75,
		PriceDisplay:     "$4,999",
	}
	res := models.AnalysisResult{FinalScore: 310, IsHot: true, Rating: 3}
	return deal, obs, res
}

func chatIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", 1000+i)
	}
	return ids
}

func TestBroadcast_RespectsFanOutBound(t *testing.T) {
	sender := &mockSender{latency: 5 * time.Millisecond}
	n := New(sender, 10)
	deal, obs, res := fixtureDeal()

	sent := n.Broadcast(context.Background(), deal, obs, res, chatIDs(50))

	if sent != 50 {
		t.Errorf("sent = %d, want 50", sent)
	}
	if sender.peak > 10 {
		t.Errorf("peak in-flight sends = %d, bound is 10", sender.peak)
	}
	if sender.peak < 2 {
		t.Errorf("peak in-flight sends = %d, fan-out appears serialized", sender.peak)
	}
}

func TestBroadcast_OneFailureDoesNotStopOthers(t *testing.T) {
	sender := &mockSender{failFor: map[int64]error{1003: errors.New("blocked by user")}}
	n := New(sender, 4)
	deal, obs, res := fixtureDeal()

	sent := n.Broadcast(context.Background(), deal, obs, res, chatIDs(8))

	if sent != 7 {
		t.Errorf("sent = %d, want 7 with one recipient failing", sent)
	}
}

func TestBroadcast_SkipsMalformedChatIDs(t *testing.T) {
	sender := &mockSender{}
	n := New(sender, 4)
	deal, obs, res := fixtureDeal()

	sent := n.Broadcast(context.Background(), deal, obs, res, []string{"123", "not-a-number", "456"})
	if sent != 2 {
		t.Errorf("sent = %d, want 2", sent)
	}
}

func TestBroadcast_DisabledNotifierDropsQuietly(t *testing.T) {
	n := New(nil, 4)
	deal, obs, res := fixtureDeal()
	if sent := n.Broadcast(context.Background(), deal, obs, res, chatIDs(3)); sent != 0 {
		t.Errorf("disabled notifier sent %d, want 0", sent)
	}
}

func TestFormatAlert(t *testing.T) {
	deal, obs, res := fixtureDeal()
	text := formatAlert(deal, obs, res)

	if !strings.Contains(text, "🔥🔥🔥") {
		t.Errorf("want three fire emojis for rating 3:\n%s", text)
	}
	if !strings.Contains(text, "Nintendo Switch &lt;OLED&gt;") {
		t.Errorf("title must be HTML-escaped:\n%s", text)
	}
	if !strings.Contains(text, "412°") || !strings.Contains(text, "Amazon") || !strings.Contains(text, "$4,999") {
		t.Errorf("alert missing temperature, merchant or price:\n%s", text)
	}
	if !strings.Contains(text, deal.URL) {
		t.Errorf("alert missing deal link:\n%s", text)
	}
	if !strings.Contains(text, "hace 45 min") {
		t.Errorf("alert missing age:\n%s", text)
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		hours float64
		want  string
	}{
		{0.5, "hace 30 min"},
		{2.5, "hace 2.5 h"},
		{72, "hace 3 días"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.hours); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.hours, got, tt.want)
		}
	}
}
