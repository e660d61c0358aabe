package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7700 {
		t.Fatalf("expected default port 7700, got %d", cfg.Server.Port)
	}
	if cfg.Arbitration.PanelSize != 3 {
		t.Fatalf("expected default panel size 3, got %d", cfg.Arbitration.PanelSize)
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	os.Setenv("AGENTCHAT_PORT", "9001")
	os.Setenv("AGENTCHAT_CAPTCHA_ENABLED", "true")
	defer os.Unsetenv("AGENTCHAT_PORT")
	defer os.Unsetenv("AGENTCHAT_CAPTCHA_ENABLED")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9001 {
		t.Fatalf("expected overridden port 9001, got %d", cfg.Server.Port)
	}
	if !cfg.Captcha.Enabled {
		t.Fatal("expected captcha enabled from env override")
	}
	if cfg.RateLimit.MsgInterval != time.Second {
		t.Fatalf("expected untouched default msg interval, got %s", cfg.RateLimit.MsgInterval)
	}
}
