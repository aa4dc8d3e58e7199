// Package webhooks delivers HMAC-signed ledger events to configured HTTP
// receivers.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// Service fans events out to subscriptions. Deliveries run in the
// background; Wait blocks until all in-flight deliveries finish.
type Service struct {
	subs       []Subscription
	httpClient *http.Client
	retryDelay []time.Duration
	onMetrics  MetricsRecorder
	logger     *zap.Logger

	wg sync.WaitGroup
}

// NewService validates subs and creates a Service.
func NewService(subs []Subscription, logger *zap.Logger) (*Service, error) {
	for i, sub := range subs {
		u, err := url.Parse(sub.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("webhook %d: invalid url %q", i, sub.URL)
		}
		if sub.Secret == "" {
			return nil, fmt.Errorf("webhook %d: secret is required", i)
		}
		for _, e := range sub.Events {
			if !slices.Contains(KnownEvents, e) {
				return nil, fmt.Errorf("webhook %d: unknown event %q", i, e)
			}
		}
	}
	return &Service{
		subs:       slices.Clone(subs),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retryDelay: []time.Duration{time.Second, 5 * time.Second},
		logger:     logger,
	}, nil
}

// SetMetricsRecorder configures the metrics callback.
func (s *Service) SetMetricsRecorder(fn MetricsRecorder) {
	s.onMetrics = fn
}

// SetRetryDelays replaces the waits between delivery attempts. The number
// of attempts is len(delays)+1.
func (s *Service) SetRetryDelays(delays ...time.Duration) {
	s.retryDelay = delays
}

// Len returns the number of subscriptions.
func (s *Service) Len() int { return len(s.subs) }

// Dispatch sends the event to every matching subscription without blocking.
// Deliveries stop retrying once ctx is done.
func (s *Service) Dispatch(ctx context.Context, eventType string, payload map[string]string) {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("webhook: marshal event", zap.Error(err))
		return
	}

	for i := range s.subs {
		sub := &s.subs[i]
		if !sub.Wants(eventType) {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.deliver(ctx, sub, event, body)
		}()
	}
}

// Wait blocks until every dispatched delivery has finished.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) deliver(ctx context.Context, sub *Subscription, event Event, body []byte) {
	signature := Sign(body, sub.Secret)
	attempts := len(s.retryDelay) + 1

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(s.retryDelay[attempt-2]):
			case <-ctx.Done():
				return
			}
		}

		status, err := s.post(ctx, sub.URL, event.ID, body, signature)
		success := err == nil
		if s.onMetrics != nil {
			s.onMetrics(success)
		}
		if success {
			s.logger.Debug("webhook: delivered",
				zap.String("url", sub.URL),
				zap.String("event", event.Type),
				zap.Int("attempt", attempt),
			)
			return
		}

		s.logger.Warn("webhook: delivery failed",
			zap.String("url", sub.URL),
			zap.String("event", event.Type),
			zap.Int("attempt", attempt),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
}

func (s *Service) post(ctx context.Context, target, eventID string, body []byte, signature string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)
	req.Header.Set("X-TrustFabric-Event-ID", eventID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// Sign computes the signature header value for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header value in constant time. Receivers use it
// to authenticate deliveries.
func Verify(body []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(body, secret)), []byte(signature))
}
