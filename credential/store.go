package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps any Redis transport failure. It is the only
// retry-safe error this package returns.
var ErrUnavailable = errors.New("credential store unavailable")

// ErrNotFound is returned when no record exists for the presented id.
var ErrNotFound = errors.New("credential not found")

// ErrSecretMismatch is returned when a record exists but the presented
// secret hash does not match its stored hash.
var ErrSecretMismatch = errors.New("credential secret mismatch")

// ErrNotActive is returned when a rotation targets a record already
// Rotated or Revoked. Callers treat this as the reuse signal.
var ErrNotActive = errors.New("credential not active")

// ErrExpired is returned when a rotation targets a record past its
// expires-at instant. The record is left untouched.
var ErrExpired = errors.New("credential expired")

// ErrCorrupt is returned when a stored blob fails structural validation.
var ErrCorrupt = errors.New("credential record corrupt")

const (
	rotateStatusNotFound  int64 = 0
	rotateStatusExpired   int64 = 1
	rotateStatusMismatch  int64 = 2
	rotateStatusNotActive int64 = 3
	rotateStatusRotated   int64 = 4
	rotateStatusCorrupt   int64 = 5
)

// rotateScript is the single serialization point of the refresh protocol.
// It re-validates hash, expiry, and state against the live blob, then in
// one atomic step marks the old record Rotated, links its successor, and
// inserts the successor record. Expiry is classified before state so a
// replayed record from a dead chain reads as expired, not reuse. Two
// concurrent rotations of the same record cannot both observe state 0.
const rotateScript = `
local function read_be64(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  local b5 = string.byte(s, i + 4)
  local b6 = string.byte(s, i + 5)
  local b7 = string.byte(s, i + 6)
  local b8 = string.byte(s, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end

local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end
if string.byte(data, 1) ~= 1 or #data < 196 then
  return {5}
end
if string.sub(data, 147, 178) ~= ARGV[1] then
  return {2}
end
local expires = read_be64(data, 187)
if not expires or expires <= tonumber(ARGV[3]) then
  return {1}
end
if string.byte(data, 2) ~= 0 then
  return {3}
end

local updated = string.sub(data, 1, 1) .. string.char(1) .. string.sub(data, 3, 110) .. ARGV[4] .. string.sub(data, 147)
local pttl = redis.call("PTTL", KEYS[1])
if pttl > 0 then
  redis.call("SET", KEYS[1], updated, "PX", pttl)
else
  redis.call("SET", KEYS[1], updated)
end

redis.call("SET", KEYS[2], ARGV[2], "PX", tonumber(ARGV[5]))
redis.call("SADD", KEYS[3], ARGV[4])
redis.call("PEXPIRE", KEYS[3], tonumber(ARGV[5]))
redis.call("SADD", KEYS[4], ARGV[4])
redis.call("PEXPIRE", KEYS[4], tonumber(ARGV[5]))
return {4}
`

var rotateLua = redis.NewScript(rotateScript)

const revokeScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
if string.byte(data, 2) == 2 then
  return 0
end
local updated = string.sub(data, 1, 1) .. string.char(2) .. string.sub(data, 3)
local pttl = redis.call("PTTL", KEYS[1])
if pttl > 0 then
  redis.call("SET", KEYS[1], updated, "PX", pttl)
else
  redis.call("SET", KEYS[1], updated)
end
return 1
`

var revokeLua = redis.NewScript(revokeScript)

// revokeSetScript revokes every Active record indexed by a set key
// (chain set or account set). Rotated records keep their state so the
// rotation history stays readable.
const revokeSetScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
local revoked = 0
for _, id in ipairs(ids) do
  local key = ARGV[1] .. id
  local data = redis.call("GET", key)
  if data and string.byte(data, 2) == 0 then
    local updated = string.sub(data, 1, 1) .. string.char(2) .. string.sub(data, 3)
    local pttl = redis.call("PTTL", key)
    if pttl > 0 then
      redis.call("SET", key, updated, "PX", pttl)
    else
      redis.call("SET", key, updated)
    end
    revoked = revoked + 1
  end
end
return revoked
`

var revokeSetLua = redis.NewScript(revokeSetScript)

// Store persists refresh credential records in Redis.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a credential [Store] backed by the given Redis client.
// prefix sets the Redis key namespace (default "am").
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "am"
	}
	return &Store{
		redis:  rdb,
		prefix: prefix,
	}
}

func (s *Store) key(id string) string {
	return s.prefix + "c:" + id
}

func (s *Store) chainKey(rootID string) string {
	return s.prefix + "h:" + rootID
}

func (s *Store) accountKey(accountID string) string {
	return s.prefix + "a:" + accountID
}

func (s *Store) keyPrefix() string {
	return s.prefix + "c:"
}

// Save persists a fresh record and indexes it under its chain root and
// owning account. ttl bounds how long the record stays visible; callers
// pass refresh lifetime plus retention grace.
func (s *Store) Save(ctx context.Context, rec *Record, ttl time.Duration) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}

	credKey := s.key(rec.ID)
	chainKey := s.chainKey(rec.ChainRoot)
	acctKey := s.accountKey(rec.AccountID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, credKey, data, ttl)
		pipe.SAdd(ctx, chainKey, rec.ID)
		pipe.PExpire(ctx, chainKey, ttl)
		pipe.SAdd(ctx, acctKey, rec.ID)
		pipe.PExpire(ctx, acctKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}

// Get fetches a record by id without mutating any state.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		return nil, errors.Join(ErrCorrupt, err)
	}
	return rec, nil
}

// Rotate atomically retires the record identified by id and inserts next
// as its successor. providedHash must match the stored secret hash and the
// record must still be Active and unexpired; all three are re-checked
// inside the Lua script so the compare-and-swap cannot race.
//
// next arrives with only its own identity filled in. Rotate completes it
// from the prior record (account, chain root, predecessor); those fields
// are immutable, so the pre-script read cannot go stale.
//
// The decoded prior record is returned on success and alongside
// [ErrNotActive] and [ErrExpired], so callers have the chain root and
// account for their reuse response without a second round-trip.
func (s *Store) Rotate(
	ctx context.Context,
	id string,
	providedHash [32]byte,
	next *Record,
	ttl time.Duration,
) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	prior, err := Decode(data)
	if err != nil {
		return nil, errors.Join(ErrCorrupt, err)
	}

	next.AccountID = prior.AccountID
	next.ChainRoot = prior.ChainRoot
	next.Predecessor = prior.ID

	blob, err := Encode(next)
	if err != nil {
		return nil, err
	}

	result, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{
			s.key(id),
			s.key(next.ID),
			s.chainKey(next.ChainRoot),
			s.accountKey(next.AccountID),
		},
		providedHash[:],
		blob,
		time.Now().Unix(),
		next.ID,
		ttl.Milliseconds(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, ErrNotFound
	case rotateStatusExpired:
		return prior, ErrExpired
	case rotateStatusMismatch:
		return nil, ErrSecretMismatch
	case rotateStatusNotActive:
		return prior, ErrNotActive
	case rotateStatusRotated:
		prior.State = StateRotated
		prior.Successor = next.ID
		return prior, nil
	case rotateStatusCorrupt:
		return nil, ErrCorrupt
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status", ErrUnavailable)
	}
}

// Revoke marks a single record Revoked. Idempotent: revoking a missing or
// already-revoked record is a no-op success.
func (s *Store) Revoke(ctx context.Context, id string) error {
	if err := revokeLua.Run(ctx, s.redis, []string{s.key(id)}).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeChain revokes every Active record in the chain rooted at rootID
// and reports how many records it transitioned.
func (s *Store) RevokeChain(ctx context.Context, rootID string) (int, error) {
	return s.revokeSet(ctx, s.chainKey(rootID))
}

// RevokeAllForAccount revokes every Active record across all of the
// account's chains ("log out everywhere").
func (s *Store) RevokeAllForAccount(ctx context.Context, accountID string) (int, error) {
	return s.revokeSet(ctx, s.accountKey(accountID))
}

func (s *Store) revokeSet(ctx context.Context, setKey string) (int, error) {
	count, err := revokeSetLua.Run(ctx, s.redis, []string{setKey}, s.keyPrefix()).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

// AccountCredentialIDs returns every indexed credential id for an account,
// regardless of state. Purged records drop out when Redis expires them.
func (s *Store) AccountCredentialIDs(ctx context.Context, accountID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ids, nil
}

// ActiveCredentialCount counts the account's records still in
// [StateActive]. Admin/introspection surface, not a hot path.
func (s *Store) ActiveCredentialCount(ctx context.Context, accountID string) (int, error) {
	ids, err := s.AccountCredentialIDs(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	active := 0
	for _, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				continue
			}
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, cmdErr)
		}
		if len(data) > stateOffset && State(data[stateOffset]) == StateActive {
			active++
		}
	}

	return active, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}
