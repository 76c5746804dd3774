package dispatch

import (
	"context"
	"fmt"
	"sync/atomic"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"github.com/cryptosurveil/surveil/internal/alertgate"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// FCMConfig gates the optional mobile push sink on a credentials file,
// matching whale-radar's push_service.go firebase.NewApp bootstrap.
type FCMConfig struct {
	CredentialsFile string
	Topic           string // FCM topic all alerts broadcast to
	QueueDepth      int
}

// FCMSink fans alerts out to mobile clients subscribed to a single FCM
// topic. Grounded on whale-radar's push_service.go: a package-level
// buffered channel drained by one worker, non-blocking submit with a
// dropped counter instead of a blocking send.
type FCMSink struct {
	client  *messaging.Client
	topic   string
	queue   chan alertgate.Alert
	dropped uint64
	log     zerolog.Logger
}

// NewFCMSink initializes the Firebase app from cfg.CredentialsFile. A
// missing or invalid credentials file disables the sink (Submit becomes a
// no-op) rather than failing startup, since FCM is an optional sink.
func NewFCMSink(ctx context.Context, cfg FCMConfig, log zerolog.Logger) *FCMSink {
	s := &FCMSink{topic: cfg.Topic, queue: make(chan alertgate.Alert, cfg.QueueDepth), log: log}
	if cfg.CredentialsFile == "" {
		return s
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		log.Warn().Err(err).Msg("push sink: firebase app init failed, FCM disabled")
		return s
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("push sink: firebase messaging client init failed, FCM disabled")
		return s
	}
	s.client = client
	return s
}

func (s *FCMSink) Name() string { return "fcm" }

func (s *FCMSink) Submit(a alertgate.Alert) {
	if s.client == nil {
		return
	}
	select {
	case s.queue <- a:
	default:
		atomic.AddUint64(&s.dropped, 1)
	}
}

func (s *FCMSink) Dropped() uint64 { return atomic.LoadUint64(&s.dropped) }

func (s *FCMSink) Run(ctx context.Context) {
	if s.client == nil {
		<-ctx.Done()
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-s.queue:
			msg := &messaging.Message{
				Topic: s.topic,
				Notification: &messaging.Notification{
					Title: fmt.Sprintf("%s %s", a.Venue, a.Symbol),
					Body:  fmt.Sprintf("%s (%s): %.4f", a.Kind, a.Severity, a.Value),
				},
				Data: map[string]string{
					"id":       a.ID,
					"venue":    a.Venue,
					"symbol":   a.Symbol,
					"kind":     string(a.Kind),
					"severity": string(a.Severity),
				},
			}
			if _, err := s.client.Send(ctx, msg); err != nil {
				s.log.Warn().Err(err).Msg("push sink: fcm send failed")
			}
		}
	}
}
