package internaldefs

import (
	"github.com/authmint/authmint"
)

// CounterDef maps a core metric ID to its exported name and help text.
type CounterDef struct {
	ID   authmint.MetricID
	Name string
	Help string
}

// HistogramDef maps a core histogram ID to its exported name and help text.
type HistogramDef struct {
	ID   authmint.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authmint.MetricLoginSuccess, Name: "authmint_login_success_total", Help: "Successful login attempts."},
	{ID: authmint.MetricLoginFailure, Name: "authmint_login_failure_total", Help: "Failed login attempts."},
	{ID: authmint.MetricRefreshSuccess, Name: "authmint_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authmint.MetricRefreshFailure, Name: "authmint_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: authmint.MetricRefreshReuseDetected, Name: "authmint_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: authmint.MetricCredentialRevoked, Name: "authmint_credential_revoked_total", Help: "Individually revoked refresh credentials."},
	{ID: authmint.MetricLogout, Name: "authmint_logout_total", Help: "Single-credential logout operations."},
	{ID: authmint.MetricLogoutAll, Name: "authmint_logout_all_total", Help: "Logout-all operations."},
	{ID: authmint.MetricAccountCreationSuccess, Name: "authmint_account_creation_success_total", Help: "Successful account creations."},
	{ID: authmint.MetricAccountCreationDuplicate, Name: "authmint_account_creation_duplicate_total", Help: "Account creation attempts rejected as duplicate."},
	{ID: authmint.MetricPasswordChangeSuccess, Name: "authmint_password_change_success_total", Help: "Successful password changes."},
	{ID: authmint.MetricPasswordChangeInvalidOld, Name: "authmint_password_change_invalid_old_total", Help: "Password change attempts with invalid old password."},
	{ID: authmint.MetricPasswordChangeReuseRejected, Name: "authmint_password_change_reuse_rejected_total", Help: "Password change attempts rejected for reuse."},
	{ID: authmint.MetricAccountDeactivated, Name: "authmint_account_deactivated_total", Help: "Account deactivation operations."},
	{ID: authmint.MetricValidateSuccess, Name: "authmint_validate_success_total", Help: "Successful access token validations."},
	{ID: authmint.MetricValidateFailure, Name: "authmint_validate_failure_total", Help: "Failed access token validations."},
}

var HistogramDefs = []HistogramDef{
	{ID: authmint.MetricValidateLatency, Name: "authmint_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds are the upper bounds of the core latency buckets, in
// seconds, as rendered in Prometheus le labels.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are the same bounds as metric-name-safe suffixes
// for backends that cannot carry labels.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus histograms expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
