package authmint

// SecurityReport summarizes the engine's active security posture. Rotation
// and reuse detection are structural, not configurable, so those fields
// are always true on a built engine.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		SigningAlgorithm: e.config.JWT.SigningMethod,
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.Refresh.TTL,
		RetentionGrace:   e.config.Refresh.RetentionGrace,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		RotationEnabled:       true,
		ReuseDetectionEnabled: true,
		AuditEnabled:          e.config.Audit.Enabled,
		MetricsEnabled:        e.config.Metrics.Enabled,
	}
}
