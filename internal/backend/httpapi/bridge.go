package httpapi

import (
	"context"

	"fog-control/internal/devapi"
	"fog-control/internal/model"
)

// Bridge serves device status from the hosted backend and delegates the rest
// of the surface to a fallback (normally the mock API). This mirrors partial
// backend rollouts: status is live first, everything else follows.
type Bridge struct {
	devapi.API
	c *Client
}

func NewBridge(c *Client, fallback devapi.API) *Bridge {
	return &Bridge{API: fallback, c: c}
}

func (b *Bridge) DeviceStatus(ctx context.Context, deviceID string) (*model.DeviceStatus, error) {
	return b.c.DeviceStatus(ctx, deviceID)
}
