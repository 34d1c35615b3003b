// Package channels provides one delivery transport per notification channel
// behind a uniform Channel interface, selected through a registry keyed on the
// channel identifier. The dispatcher stays channel-count-agnostic: adding a
// transport means one implementation and one Register call.
package channels

import (
	"context"
	"fmt"

	"catalyst-alerts/internal/models"
)

// Recipient carries the delivery identities for one user, resolved once per
// alert from the preference and user stores.
type Recipient struct {
	UserID          string
	Email           string
	PhoneNumber     string
	SlackWebhookURL string
}

// Channel is a single delivery transport. Send returns nil only on confirmed
// delivery; every failure (including timeout) is an error scoped to this one
// attempt.
type Channel interface {
	Name() string
	Send(ctx context.Context, recipient Recipient, content *models.AlertContent) error
}

// Registry holds the configured transports keyed by channel identifier.
type Registry struct {
	channels map[string]Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

func (r *Registry) Register(ch Channel) {
	r.channels[ch.Name()] = ch
}

func (r *Registry) Get(name string) (Channel, error) {
	ch, ok := r.channels[name]
	if !ok {
		return nil, fmt.Errorf("unknown channel: %s", name)
	}
	return ch, nil
}

// Names returns the registered channel identifiers.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	return names
}
