package service

import (
	"context"
	"strings"
	"time"

	"github.com/Dan9191/card-service/internal/config"
	"github.com/Dan9191/card-service/internal/metrics"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Service handles business logic
type Service struct {
	store     Store
	log       *logrus.Logger
	config    *config.Config
	mailer    Mailer
	rates     RateSource
	publisher Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures optional collaborators of a Service
type Option func(*Service)

// WithMailer sends notifications by e-mail as well
func WithMailer(m Mailer) Option {
	return func(s *Service) { s.mailer = m }
}

// WithRateSource supplies the default rate for quotes and plans created without one
func WithRateSource(r RateSource) Option {
	return func(s *Service) { s.rates = r }
}

// WithPublisher emits lifecycle events
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics records business counters
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService initializes a new service
func NewService(store Store, log *logrus.Logger, cfg *config.Config, opts ...Option) *Service {
	s := &Service{store: store, log: log, config: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config exposes the configuration the service runs with
func (s *Service) Config() *config.Config {
	return s.config
}

// newCode builds a public reference such as EMI_1A2B3C4D5E6F
func newCode(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + strings.ToUpper(id[:12])
}

// notify persists an in-app notification and mails it when a mailer is set.
// Failures are logged, never returned: the operation that triggered the
// notification has already succeeded.
func (s *Service) notify(ctx context.Context, n models.Notification) {
	n.CreatedAt = s.now()
	if err := s.store.CreateNotification(ctx, &n); err != nil {
		s.log.Warnf("Failed to store notification %q for user %d: %v", n.Title, n.UserID, err)
		return
	}
	if s.mailer == nil {
		return
	}
	user, err := s.store.GetUserByID(ctx, n.UserID)
	if err != nil {
		s.log.Warnf("Failed to load user %d for notification email: %v", n.UserID, err)
		return
	}
	if err := s.mailer.SendNotification(user.Email, user.FullName(), n); err != nil {
		s.log.Warnf("Failed to email notification %q to user %d: %v", n.Title, n.UserID, err)
	}
}

func (s *Service) publish(ctx context.Context, routingKey string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		s.log.Warnf("Failed to publish %s: %v", routingKey, err)
	}
}
