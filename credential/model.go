package credential

// NilID is the textual form of the all-zero credential id. Record fields
// that do not reference another credential (predecessor of a chain root,
// successor of an active record) hold this value.
const NilID = "00000000-0000-0000-0000-000000000000"

// State is the lifecycle state of a refresh credential record.
type State uint8

const (
	// StateActive marks the single live record of a chain.
	StateActive State = 0
	// StateRotated marks a record retired by a successful rotation; its
	// Successor field points at the replacement.
	StateRotated State = 1
	// StateRevoked is terminal: logout, chain revocation, or
	// administrative action. No successor exists.
	StateRevoked State = 2
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateRotated:
		return "rotated"
	case StateRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Record is one persisted refresh credential. All fields except State and
// Successor are fixed at creation; State mutates exactly once
// (Active→Rotated or Active→Revoked) and Successor is set in the same
// atomic step as the Rotated transition.
type Record struct {
	ID          string
	AccountID   string
	ChainRoot   string
	Predecessor string
	Successor   string
	SecretHash  [32]byte
	State       State
	IssuedAt    int64
	ExpiresAt   int64
}
