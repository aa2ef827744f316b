package services

import (
	"context"

	"github.com/dengue-gen/denguegen-backend/internal/types"
)

// Notifier receives every chat state transition of one user.
type Notifier interface {
	Publish(ctx context.Context, userID string, event types.ChatEvent)
}

type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, string, types.ChatEvent) {}
