package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Targets describes where digests go.
type Targets struct {
	ChannelID         string
	UserID            string
	SendWatcherToUser bool
	DisablePreview    bool
}

// Mirror is an extra best-effort destination served by its own deliverer.
type Mirror struct {
	Deliverer   Deliverer
	Destination string
}

// Publisher fans a digest out to the configured destinations.
type Publisher struct {
	deliverer Deliverer
	targets   Targets
	mirrors   []Mirror
	logger    *zap.Logger
}

// NewPublisher creates a new publisher
func NewPublisher(deliverer Deliverer, targets Targets, mirrors []Mirror, logger *zap.Logger) *Publisher {
	return &Publisher{
		deliverer: deliverer,
		targets:   targets,
		mirrors:   mirrors,
		logger:    logger,
	}
}

// Targets returns the configured destinations.
func (p *Publisher) Targets() Targets {
	return p.targets
}

// Publish sends text to the channel, and to userID when forceUser is set or
// the watcher is configured to copy the user. Mirror failures are logged only.
func (p *Publisher) Publish(ctx context.Context, text string, userID string, forceUser bool) error {
	if err := p.deliverer.Send(ctx, p.targets.ChannelID, text, p.targets.DisablePreview); err != nil {
		return fmt.Errorf("sending to channel %s: %w", p.targets.ChannelID, err)
	}

	if userID != "" && (forceUser || p.targets.SendWatcherToUser) {
		if err := p.deliverer.Send(ctx, userID, text, p.targets.DisablePreview); err != nil {
			return fmt.Errorf("sending to user %s: %w", userID, err)
		}
	}

	for _, m := range p.mirrors {
		if err := m.Deliverer.Send(ctx, m.Destination, text, p.targets.DisablePreview); err != nil {
			p.logger.Warn("Mirror delivery failed",
				zap.String("destination", m.Destination),
				zap.Error(err))
		}
	}

	return nil
}

// Notify sends an operator notice to the user chat.
func (p *Publisher) Notify(ctx context.Context, text string) error {
	if p.targets.UserID == "" {
		return nil
	}
	return p.deliverer.Send(ctx, p.targets.UserID, text, true)
}
