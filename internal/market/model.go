// Package market implements the pricing services the tick engine consumes as
// opaque collaborators: a regime-driven random walk with mean reversion for
// stocks, and a wilder variant for crypto assets.
package market

import (
	"math"
	"strings"
)

const (
	minPriceCents = int64(1)                     // 0.01 buck
	maxPriceCents = int64(2_000_000_000_000_000) // nobody needs more
)

type dynamics struct {
	Noise         float64
	ShockProb     float64
	ShockScale    float64
	ExtremeProb   float64
	ExtremeScale  float64
	MeanReversion float64
	AnchorNoise   float64
	RegimeSwitch  float64
	MaxDrop       float64
}

func dynamicsFor(mode string) dynamics {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "calm":
		return dynamics{
			Noise:         0.018,
			ShockProb:     0.05,
			ShockScale:    0.08,
			ExtremeProb:   0.007,
			ExtremeScale:  0.20,
			MeanReversion: 0.030,
			AnchorNoise:   0.010,
			RegimeSwitch:  0.04,
			MaxDrop:       1.20,
		}
	case "wild":
		return dynamics{
			Noise:         0.065,
			ShockProb:     0.19,
			ShockScale:    0.22,
			ExtremeProb:   0.055,
			ExtremeScale:  0.65,
			MeanReversion: 0.008,
			AnchorNoise:   0.040,
			RegimeSwitch:  0.12,
			MaxDrop:       2.60,
		}
	default: // "normal"
		return dynamics{
			Noise:         0.036,
			ShockProb:     0.10,
			ShockScale:    0.14,
			ExtremeProb:   0.018,
			ExtremeScale:  0.34,
			MeanReversion: 0.018,
			AnchorNoise:   0.022,
			RegimeSwitch:  0.07,
			MaxDrop:       2.00,
		}
	}
}

func pickRegime(seed float64) string {
	switch {
	case seed < 0.33:
		return "bear"
	case seed < 0.66:
		return "neutral"
	default:
		return "bull"
	}
}

func regimeDrift(regime string) float64 {
	switch regime {
	case "bull":
		return 0.0085
	case "bear":
		return -0.0085
	default:
		return 0
	}
}

// noiseFromSeed maps a uniform [0,1) seed onto [-1,1).
func noiseFromSeed(seed float64) float64 {
	return seed + seed - 1
}

func signedShock(magSeed, signSeed, base float64) float64 {
	mag := base * (0.35 + 2.8*magSeed*magSeed)
	if signSeed < 0.5 {
		return -mag
	}
	return mag
}

func meanReversion(price, anchor int64, strength float64) float64 {
	if anchor <= 0 {
		return 0
	}
	return strength * (float64(anchor-price) / float64(anchor))
}

// stepPrice applies a log return to a price, bounding only the downside so
// upside can run, and clamping into the sane price band.
func stepPrice(priceCents int64, ret, maxDrop float64) int64 {
	if priceCents <= 0 {
		return minPriceCents
	}
	if ret < -maxDrop {
		ret = -maxDrop
	}
	next := int64(math.Round(float64(priceCents) * math.Exp(ret)))
	if next < minPriceCents {
		next = minPriceCents
	}
	if next > maxPriceCents {
		next = maxPriceCents
	}
	return next
}
