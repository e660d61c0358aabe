// Package config provides configuration types and loading for the
// agentchat server.
package config

import "time"

// Config is the root configuration struct. Top-level groups: Server,
// Captcha, AccessList, Arbitration, RateLimit — the same
// grouped-struct-with-envconfig-tags shape the teacher uses for its
// Paths/Model/Gateway groups.
type Config struct {
	Server      ServerConfig      `json:"server"`
	Captcha     CaptchaConfig     `json:"captcha"`
	AccessList  AccessListConfig  `json:"accessList"`
	Arbitration ArbitrationConfig `json:"arbitration"`
	RateLimit   RateLimitConfig   `json:"rateLimit"`
}

// ---------------------------------------------------------------------------
// Server – networking and persistence locations
// ---------------------------------------------------------------------------

// ServerConfig groups networking, persistence, and moderation settings.
type ServerConfig struct {
	Host            string        `json:"host" envconfig:"HOST"`
	Port            int           `json:"port" envconfig:"PORT"`
	DataDir         string        `json:"dataDir" envconfig:"DATA_DIR"`
	AdminKey        string        `json:"adminKey" envconfig:"ADMIN_KEY"`
	PublicDefault   bool          `json:"publicDefault" envconfig:"PUBLIC_DEFAULT"`
	LurkWindow      time.Duration `json:"lurkWindow" envconfig:"LURK_WINDOW"`
	HeartbeatPeriod time.Duration `json:"heartbeatPeriod" envconfig:"HEARTBEAT_PERIOD"`
	PongTimeout     time.Duration `json:"pongTimeout" envconfig:"PONG_TIMEOUT"`
	ReplayRingSize  int           `json:"replayRingSize" envconfig:"REPLAY_RING_SIZE"`
	MaxInboxLines   int           `json:"maxInboxLines" envconfig:"MAX_INBOX_LINES"`
	UseSQLite       bool          `json:"useSqlite" envconfig:"USE_SQLITE"`
}

// ---------------------------------------------------------------------------
// Captcha – registration gate
// ---------------------------------------------------------------------------

// CaptchaConfig configures the handshake captcha gate.
type CaptchaConfig struct {
	Enabled         bool          `json:"enabled" envconfig:"CAPTCHA_ENABLED"`
	Timeout         time.Duration `json:"timeout" envconfig:"CAPTCHA_TIMEOUT_MS"`
	MaxAttempts     int           `json:"maxAttempts" envconfig:"CAPTCHA_MAX_ATTEMPTS"`
	Difficulty      string        `json:"difficulty" envconfig:"CAPTCHA_DIFFICULTY"` // easy, medium, hard
	SkipAllowlisted bool          `json:"skipAllowlisted" envconfig:"CAPTCHA_SKIP_ALLOWLISTED"`
	FailAction      string        `json:"failAction" envconfig:"CAPTCHA_FAIL_ACTION"` // disconnect, shadow_lurk
}

// ---------------------------------------------------------------------------
// AccessList – allowlist/banlist gate
// ---------------------------------------------------------------------------

// AccessListConfig configures the handshake allowlist gate.
type AccessListConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ACCESSLIST_ENABLED"`
	Policy  string `json:"policy" envconfig:"ACCESSLIST_POLICY"` // strict, open
}

// ---------------------------------------------------------------------------
// Arbitration – dispute-panel tuning
// ---------------------------------------------------------------------------

// ArbitrationConfig tunes the commit-reveal arbitration panel protocol.
type ArbitrationConfig struct {
	PanelSize            int           `json:"panelSize" envconfig:"ARB_PANEL_SIZE"`
	MaxReplacementRounds int           `json:"maxReplacementRounds" envconfig:"ARB_MAX_REPLACEMENT_ROUNDS"`
	RevealTimeout        time.Duration `json:"revealTimeout" envconfig:"ARB_REVEAL_TIMEOUT"`
	ResponseTimeout      time.Duration `json:"responseTimeout" envconfig:"ARB_RESPONSE_TIMEOUT"`
	EvidenceTimeout      time.Duration `json:"evidenceTimeout" envconfig:"ARB_EVIDENCE_TIMEOUT"`
	VoteTimeout          time.Duration `json:"voteTimeout" envconfig:"ARB_VOTE_TIMEOUT"`
}

// ---------------------------------------------------------------------------
// RateLimit – per-session clocks
// ---------------------------------------------------------------------------

// RateLimitConfig tunes the per-session rate-limit clocks.
type RateLimitConfig struct {
	MsgInterval  time.Duration `json:"msgInterval" envconfig:"RATE_MSG_INTERVAL"`
	NickInterval time.Duration `json:"nickInterval" envconfig:"RATE_NICK_INTERVAL"`
}

// DefaultConfig returns a Config with the defaults spec.md names.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            7700,
			DataDir:         "./data",
			PublicDefault:   false,
			LurkWindow:      time.Hour,
			HeartbeatPeriod: 30 * time.Second,
			PongTimeout:     90 * time.Second,
			ReplayRingSize:  100,
			MaxInboxLines:   1000,
			UseSQLite:       false,
		},
		Captcha: CaptchaConfig{
			Enabled:     false,
			Timeout:     2 * time.Minute,
			MaxAttempts: 3,
			Difficulty:  "medium",
			FailAction:  "disconnect",
		},
		AccessList: AccessListConfig{
			Enabled: false,
			Policy:  "open",
		},
		Arbitration: ArbitrationConfig{
			PanelSize:            3,
			MaxReplacementRounds: 3,
			RevealTimeout:        5 * time.Minute,
			ResponseTimeout:      2 * time.Minute,
			EvidenceTimeout:      10 * time.Minute,
			VoteTimeout:          10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			MsgInterval:  time.Second,
			NickInterval: 30 * time.Second,
		},
	}
}
