package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the common prefix for every environment variable group
// (AGENTCHAT_ADMIN_KEY, AGENTCHAT_CAPTCHA_ENABLED, ...).
const EnvPrefix = "AGENTCHAT"

// Load builds a Config from defaults overridden by environment
// variables, processing each group independently the way the teacher's
// loader calls envconfig.Process once per config group.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := envconfig.Process(EnvPrefix, &cfg.Server); err != nil {
		return nil, fmt.Errorf("config: load server group: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg.Captcha); err != nil {
		return nil, fmt.Errorf("config: load captcha group: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg.AccessList); err != nil {
		return nil, fmt.Errorf("config: load accesslist group: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg.Arbitration); err != nil {
		return nil, fmt.Errorf("config: load arbitration group: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg.RateLimit); err != nil {
		return nil, fmt.Errorf("config: load rate limit group: %w", err)
	}

	return cfg, nil
}
