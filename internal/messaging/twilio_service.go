package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSSender is the slice of the Twilio REST API the service needs.
// Satisfied by the real client's Api service and by test mocks.
type SMSSender interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// Opts holds configuration options for the Twilio service.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	// Client overrides the Twilio API client, mainly for tests.
	Client SMSSender
}

// Option configures the Twilio service.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sender phone number.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// WithClient sets a custom Twilio API client.
func WithClient(c SMSSender) Option {
	return func(o *Opts) { o.Client = c }
}

// TwilioService implements Service over the Twilio SMS API.
type TwilioService struct {
	client  SMSSender
	from    string
	mu      sync.Mutex
	stopped bool
}

// NewTwilioService creates a Twilio-backed SMS service. Returns nil when
// no credentials or custom client are configured; callers treat a nil
// service as "SMS channel disabled".
func NewTwilioService(opts ...Option) *TwilioService {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.Client == nil {
		if o.AccountSID == "" || o.AuthToken == "" {
			slog.Info("messaging.NewTwilioService: no Twilio credentials configured, SMS sending disabled")
			return nil
		}
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: o.AccountSID,
			Password: o.AuthToken,
		})
		o.Client = rest.Api
	}
	slog.Info("messaging.NewTwilioService: service created", "from", o.FromNumber)
	return &TwilioService{client: o.Client, from: o.FromNumber}
}

// SendSMS sends one SMS message.
func (s *TwilioService) SendSMS(ctx context.Context, to, body string) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("messaging: service is stopped")
	}
	s.mu.Unlock()

	canonical, err := CanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(canonical)
	params.SetFrom(s.from)
	params.SetBody(body)

	msg, err := s.client.CreateMessage(params)
	if err != nil {
		slog.Error("TwilioService.SendSMS: failed to send message", "to", canonical, "error", err)
		return fmt.Errorf("messaging: failed to send SMS: %w", err)
	}
	sid := ""
	if msg != nil && msg.Sid != nil {
		sid = *msg.Sid
	}
	slog.Info("TwilioService.SendSMS: message sent", "to", canonical, "sid", sid)
	return nil
}

// Stop marks the service stopped. Subsequent sends fail fast.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}
