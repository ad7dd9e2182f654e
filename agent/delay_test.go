package agent

import (
	"testing"
	"time"

	"github.com/glinthq/convgate/pkg/config"
)

func TestDeliveryDelayBounds(t *testing.T) {
	lengths := []int{0, 1, 10, 50, 200, 5000}

	for _, n := range lengths {
		d := deliveryDelay(n)
		if d < config.DeliveryBaseDelay {
			t.Errorf("len=%d: delay %v below base %v", n, d, config.DeliveryBaseDelay)
		}
		max := config.DeliveryTotalCap + config.DeliveryJitterRange
		if d > max {
			t.Errorf("len=%d: delay %v exceeds cap %v", n, d, max)
		}
	}
}

func TestDeliveryDelayGrowsWithLength(t *testing.T) {
	// Strip jitter by sampling the deterministic part: for short texts the
	// typing component dominates and must be monotone before the cap
	shortMin := config.DeliveryBaseDelay + 5*config.DeliveryMsPerChar
	longMin := config.DeliveryBaseDelay + 40*config.DeliveryMsPerChar
	if longMin > config.DeliveryTotalCap {
		longMin = config.DeliveryTotalCap
	}

	short := deliveryDelay(5)
	long := deliveryDelay(40)

	if short < shortMin {
		t.Errorf("short delay %v below deterministic floor %v", short, shortMin)
	}
	if long < longMin {
		t.Errorf("long delay %v below deterministic floor %v", long, longMin)
	}
}

func TestDeliveryDelayCapped(t *testing.T) {
	// A multi-kilobyte reply must not stall delivery past the total cap
	d := deliveryDelay(100000)
	if d > config.DeliveryTotalCap+config.DeliveryJitterRange {
		t.Errorf("huge text delay %v not capped", d)
	}
	if d < config.DeliveryTotalCap {
		t.Errorf("huge text delay %v below total cap %v", d, config.DeliveryTotalCap)
	}
}

func TestDeliveryDelayJitterVaries(t *testing.T) {
	seen := make(map[time.Duration]bool)
	for i := 0; i < 50; i++ {
		seen[deliveryDelay(100)] = true
	}
	if len(seen) < 2 {
		t.Error("Expected jitter to vary delays across samples")
	}
}
