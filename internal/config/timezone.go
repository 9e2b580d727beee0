package config

import (
	"fmt"
	"time"
)

// setTimezone loads cfg.TZ into cfg.Location. An empty TZ leaves the
// location unset so timestamps are compared without a site zone.
func setTimezone(cfg *Global) error {
	if cfg.TZ == "" {
		cfg.Location = nil
		return nil
	}
	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", cfg.TZ, err)
	}
	cfg.Location = loc
	return nil
}
