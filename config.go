package authmint

import (
	"errors"
	"time"
)

// Config carries every tunable of the engine. Start from [DefaultConfig]
// and override; a Config is treated as immutable after Build.
type Config struct {
	JWT      JWTConfig
	Refresh  RefreshConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig configures access-token issuance and verification.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	// VerifyKeys holds additional public keys by key id, so tokens signed
	// under a previous key keep verifying during rotation.
	VerifyKeys map[string][]byte
}

// RefreshConfig configures refresh credential lifetime and storage.
type RefreshConfig struct {
	TTL time.Duration
	// RetentionGrace keeps rotated and expired records visible past the
	// refresh lifetime so replays are detected instead of reported as
	// unknown tokens.
	RetentionGrace time.Duration
	RedisPrefix    string
}

// PasswordConfig holds the Argon2id cost parameters. Memory is in KB.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the secure defaults: ed25519 signing, 15m access
// tokens, 7d refresh credentials with a 24h replay-detection window, and
// Argon2id at 64MB/3/2. Key material must still be provided by the caller.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "ed25519",
			Leeway:        30 * time.Second,
			MaxFutureIAT:  2 * time.Minute,
		},
		Refresh: RefreshConfig{
			TTL:            7 * 24 * time.Hour,
			RetentionGrace: 24 * time.Hour,
			RedisPrefix:    "am",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if len(cfg.JWT.VerifyKeys) > 0 {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate rejects configurations the engine cannot run safely.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
		return errors.New("hs256 requires PrivateKey of at least 32 bytes")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}
	if c.JWT.MaxFutureIAT < 0 {
		return errors.New("JWT MaxFutureIAT must be >= 0")
	}

	// Refresh
	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.RetentionGrace < 0 {
		return errors.New("Refresh RetentionGrace must be >= 0")
	}
	if c.Refresh.RedisPrefix == "" {
		return errors.New("Refresh RedisPrefix must not be empty")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
