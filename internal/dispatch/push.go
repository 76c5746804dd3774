package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cryptosurveil/surveil/internal/alertgate"
	"github.com/cryptosurveil/surveil/internal/detect"
	"github.com/cryptosurveil/surveil/internal/ratelimit"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// PushConfig names the two Telegram credential sets §6 requires: High
// severity routes to urgent, everything else to normal.
type PushConfig struct {
	NormalToken  string
	NormalChatID int64
	UrgentToken  string
	UrgentChatID int64

	RateLimitPerMin int
	QueueDepth      int
}

// telegramChannel is one configured bot+chat pair with its own bounded
// queue and rate limiter, so a slow/suspended urgent channel never starves
// the normal one or vice versa.
type telegramChannel struct {
	name    string
	bot     *tgbotapi.BotAPI
	chatID  int64
	queue   chan string
	limiter *ratelimit.TokenBucket
	dropped uint64
	log     zerolog.Logger
}

func newTelegramChannel(name, token string, chatID int64, ratePerMin, queueDepth int, log zerolog.Logger) *telegramChannel {
	if token == "" || chatID == 0 {
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Warn().Err(err).Str("channel", name).Msg("push sink: telegram bot init failed, channel disabled")
		return nil
	}
	rate := float64(ratePerMin) / 60.0
	if rate <= 0 {
		rate = 0.5
	}
	return &telegramChannel{
		name:    name,
		bot:     bot,
		chatID:  chatID,
		queue:   make(chan string, queueDepth),
		limiter: ratelimit.NewTokenBucket(rate, rate*2),
		log:     log,
	}
}

func (c *telegramChannel) submit(text string) {
	select {
	case c.queue <- text:
	default:
		atomic.AddUint64(&c.dropped, 1)
	}
}

func (c *telegramChannel) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-c.queue:
			if err := c.limiter.Acquire(ctx, 1); err != nil {
				return
			}
			msg := tgbotapi.NewMessage(c.chatID, text)
			msg.ParseMode = "Markdown"
			if _, err := c.bot.Send(msg); err != nil {
				c.log.Warn().Err(err).Str("channel", c.name).Msg("push sink: telegram send failed")
			}
		}
	}
}

// TelegramSink implements the §6 notification contract: HTTP POST with
// {chat_id, text, parse_mode}, High severity on the urgent credential set,
// everything else on normal. Grounded on whale-radar's
// notification_service.go Notify() shape, generalized from one channel to
// two and from fire-and-forget goroutines to a bounded worker per channel.
type TelegramSink struct {
	normal *telegramChannel
	urgent *telegramChannel
}

// NewTelegramSink builds the sink; a channel with no token/chatID
// configured is simply absent (Submit silently drops for it).
func NewTelegramSink(cfg PushConfig, log zerolog.Logger) *TelegramSink {
	return &TelegramSink{
		normal: newTelegramChannel("normal", cfg.NormalToken, cfg.NormalChatID, cfg.RateLimitPerMin, cfg.QueueDepth, log),
		urgent: newTelegramChannel("urgent", cfg.UrgentToken, cfg.UrgentChatID, cfg.RateLimitPerMin, cfg.QueueDepth, log),
	}
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Submit(a alertgate.Alert) {
	ch := s.normal
	if a.Severity == detect.SeverityHigh {
		ch = s.urgent
	}
	if ch == nil {
		return
	}
	ch.submit(formatAlert(a))
}

func (s *TelegramSink) Dropped() uint64 {
	var d uint64
	if s.normal != nil {
		d += atomic.LoadUint64(&s.normal.dropped)
	}
	if s.urgent != nil {
		d += atomic.LoadUint64(&s.urgent.dropped)
	}
	return d
}

func (s *TelegramSink) Run(ctx context.Context) {
	done := make(chan struct{}, 2)
	n := 0
	if s.normal != nil {
		n++
		go func() { s.normal.run(ctx); done <- struct{}{} }()
	}
	if s.urgent != nil {
		n++
		go func() { s.urgent.run(ctx); done <- struct{}{} }()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	<-ctx.Done()
}

func formatAlert(a alertgate.Alert) string {
	if a.Count > 1 {
		return fmt.Sprintf("*%s* %s %s\ncount=%d max=%.4f total=%.4f severity=%s\n%s",
			a.Venue, a.Symbol, a.Kind, a.Count, a.MaxValue, a.TotalValue, a.Severity, a.Reason)
	}
	return fmt.Sprintf("*%s* %s %s\nvalue=%.6f price=%.6f severity=%s direction=%s\n%s",
		a.Venue, a.Symbol, a.Kind, a.Value, a.Price, a.Severity, a.Direction, a.Reason)
}
