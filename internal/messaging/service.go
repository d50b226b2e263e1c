// Package messaging provides the outbound SMS abstraction used for the
// SMS channel: webhook turn replies are answered inline, and booking
// confirmations are sent as standalone messages through this service.
package messaging

import (
	"context"
	"fmt"
	"regexp"
)

// Service sends outbound SMS messages.
type Service interface {
	// SendSMS sends one message to a phone number in any common format.
	SendSMS(ctx context.Context, to, body string) error
	// Stop releases the service. Safe to call more than once.
	Stop() error
}

// phoneNumberRegex strips everything that is not a digit or a leading plus.
var phoneNumberRegex = regexp.MustCompile(`[^0-9+]`)

// CanonicalizeRecipient normalizes a phone number to digits with an
// optional leading plus and validates the length.
func CanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if len(canonical) > 1 && canonical[0] == '+' {
		canonical = "+" + regexp.MustCompile(`[^0-9]`).ReplaceAllString(canonical[1:], "")
	}
	digits := 0
	for _, r := range canonical {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	return canonical, nil
}
