package authmint

import (
	"testing"
)

func TestDefaultConfigValidatesWithKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults with key material must validate: %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	base := func() Config {
		cfg := DefaultConfig()
		cfg.JWT.SigningMethod = "hs256"
		cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }},
		{"unknown method", func(c *Config) { c.JWT.SigningMethod = "rs256" }},
		{"short hs256 key", func(c *Config) { c.JWT.PrivateKey = []byte("short") }},
		{"ed25519 without keys", func(c *Config) { c.JWT.SigningMethod = "ed25519"; c.JWT.PrivateKey = nil }},
		{"negative leeway", func(c *Config) { c.JWT.Leeway = -1 }},
		{"zero refresh ttl", func(c *Config) { c.Refresh.TTL = 0 }},
		{"negative grace", func(c *Config) { c.Refresh.RetentionGrace = -1 }},
		{"empty prefix", func(c *Config) { c.Refresh.RedisPrefix = "" }},
		{"weak argon memory", func(c *Config) { c.Password.Memory = 1024 }},
		{"short salt", func(c *Config) { c.Password.SaltLength = 8 }},
		{"audit without buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }},
	}

	for _, tc := range cases {
		cfg := base()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestCloneConfigIsDeep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte("secret-key-material-secret-key!!")
	cfg.JWT.VerifyKeys = map[string][]byte{"k1": []byte("verify-key")}

	cloned := cloneConfig(cfg)
	cfg.JWT.PrivateKey[0] = 'X'
	cfg.JWT.VerifyKeys["k1"][0] = 'X'

	if cloned.JWT.PrivateKey[0] == 'X' {
		t.Fatal("private key not deep-copied")
	}
	if cloned.JWT.VerifyKeys["k1"][0] == 'X' {
		t.Fatal("verify keys not deep-copied")
	}
}
