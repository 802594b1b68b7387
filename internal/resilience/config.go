package resilience

import "time"

// PolicyFrom builds a Policy from config values. Non-positive values keep the
// defaults; a negative jitter keeps the default jitter.
func PolicyFrom(maxAttempts, initialBackoffMs, maxBackoffMs int, multiplier, jitter float64) Policy {
	p := DefaultPolicy()
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		p.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	if multiplier > 0 {
		p.Multiplier = multiplier
	}
	if jitter >= 0 {
		p.Jitter = jitter
	}
	return p
}

// BreakerFrom builds a BreakerConfig from config values.
func BreakerFrom(threshold, cooldownSecs int) BreakerConfig {
	c := DefaultBreakerConfig()
	if threshold > 0 {
		c.Threshold = threshold
	}
	if cooldownSecs > 0 {
		c.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return c
}
