package device

import (
	"context"

	"a55pay-sdk/models"
	"a55pay-sdk/page"
)

// Collector assembles device fingerprints for payment submission.
type Collector struct {
	identity *Identity
	doc      page.Document
	chain    ChainResolver
}

func NewCollector(identity *Identity, doc page.Document, chain ChainResolver) *Collector {
	return &Collector{identity: identity, doc: doc, chain: chain}
}

// Collect builds a fingerprint for one authentication attempt. knownIP, when
// valid, is tried before the configured strategies.
func (c *Collector) Collect(ctx context.Context, sessionID, knownIP string) *models.DeviceFingerprint {
	env := c.doc.Environment()

	chain := c.chain
	if knownIP != "" {
		chain.Resolvers = append([]IPResolver{StaticResolver(knownIP)}, c.chain.Resolvers...)
	}

	return &models.DeviceFingerprint{
		DeviceID:       c.identity.Get(),
		SessionID:      sessionID,
		IPAddress:      chain.Resolve(ctx),
		UserAgent:      env.UserAgent,
		Language:       env.Language,
		ScreenWidth:    env.ScreenWidth,
		ScreenHeight:   env.ScreenHeight,
		ColorDepth:     env.ColorDepth,
		TimezoneOffset: env.TimezoneOffset,
	}
}
