package agent

import (
	"math/rand"
	"time"

	"github.com/glinthq/convgate/pkg/config"
)

// deliveryDelay computes the humanizing delay before the cleaned text is
// published: a base latency plus simulated typing time proportional to the
// text length, capped, plus a little jitter.
func deliveryDelay(textLen int) time.Duration {
	typing := time.Duration(textLen) * config.DeliveryMsPerChar
	if typing > config.DeliveryTypingCap {
		typing = config.DeliveryTypingCap
	}
	delay := config.DeliveryBaseDelay + typing
	if delay > config.DeliveryTotalCap {
		delay = config.DeliveryTotalCap
	}
	return delay + time.Duration(rand.Int63n(int64(config.DeliveryJitterRange)))
}
