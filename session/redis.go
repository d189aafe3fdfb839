package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound    int64 = 0
	rotateStatusExpired     int64 = 1
	rotateStatusReuse       int64 = 2
	rotateStatusRotated     int64 = 3
	rotateStatusCompromised int64 = 4
	rotateStatusCorrupt     int64 = 5
)

// luaHelpers is prepended to every script that needs key construction or the
// family cascade. The cascade runs inside the same script invocation as the
// detection that triggered it, so compromise state is read-after-write
// consistent for every later caller.
const luaHelpers = `
local prefix = ARGV[1]

local function record_key(hex) return prefix .. ":r:" .. hex end
local function bl_key(hex) return prefix .. ":b:" .. hex end
local function user_key(id) return prefix .. ":u:" .. id end
local function fam_key(id) return prefix .. ":f:" .. id end
local function fam_index_key(id) return prefix .. ":fi:" .. id end

local function cascade(family_id, now, bl_ttl)
  local fkey = fam_key(family_id)
  local fdata = redis.call("GET", fkey)
  local uid = nil
  if fdata then
    local ok, fam = pcall(cjson.decode, fdata)
    if ok and fam then
      uid = fam.uid
      fam.comp = true
      fam.lu = now
      redis.call("SET", fkey, cjson.encode(fam), "EX", bl_ttl)
    end
  end

  local removed = 0
  local members = redis.call("SMEMBERS", fam_index_key(family_id))
  for _, hex in ipairs(members) do
    local rkey = record_key(hex)
    local rdata = redis.call("GET", rkey)
    if rdata then
      redis.call("DEL", rkey)
      removed = removed + 1
      if not uid then
        local ok, rec = pcall(cjson.decode, rdata)
        if ok and rec then uid = rec.uid end
      end
    end
    if uid then redis.call("SREM", user_key(uid), hex) end
    redis.call("SET", bl_key(hex), family_id, "EX", bl_ttl)
  end
  redis.call("DEL", fam_index_key(family_id))
  return removed, uid
end
`

// rotateScript is the crux of the reuse-detection guarantee: lookup, expiry
// check, family check, consume, blacklist, and successor install happen in
// one EVAL. Exactly one concurrent caller can observe the live record.
const rotateScript = luaHelpers + `
local provided_hex = ARGV[2]
local next_hex = ARGV[3]
local now = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])
local bl_ttl = tonumber(ARGV[6])
local ua = ARGV[7]
local ip = ARGV[8]

local data = redis.call("GET", KEYS[1])
if not data then
  local bl = redis.call("GET", KEYS[2])
  if bl then
    local _, uid = cascade(bl, now, bl_ttl)
    return {2, bl, uid or ""}
  end
  return {0}
end

local ok, rec = pcall(cjson.decode, data)
if not ok or not rec or not rec.uid or not rec.fam then
  redis.call("DEL", KEYS[1])
  return {5}
end

if tonumber(rec.exp) <= now then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", user_key(rec.uid), provided_hex)
  redis.call("SREM", fam_index_key(rec.fam), provided_hex)
  return {1}
end

local fdata = redis.call("GET", fam_key(rec.fam))
if not fdata then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", user_key(rec.uid), provided_hex)
  redis.call("SET", KEYS[2], rec.fam, "EX", bl_ttl)
  cascade(rec.fam, now, bl_ttl)
  return {4, rec.fam, rec.uid}
end
local okf, fam = pcall(cjson.decode, fdata)
if not okf or not fam then
  redis.call("DEL", KEYS[1])
  return {5}
end
if fam.comp then
  cascade(rec.fam, now, bl_ttl)
  return {4, rec.fam, rec.uid}
end

redis.call("DEL", KEYS[1])
redis.call("SREM", fam_index_key(rec.fam), provided_hex)
redis.call("SREM", user_key(rec.uid), provided_hex)
redis.call("SET", KEYS[2], rec.fam, "EX", bl_ttl)

local succ = {
  v = rec.v,
  uid = rec.uid,
  em = rec.em,
  ro = rec.ro,
  fam = rec.fam,
  rc = rec.rc + 1,
  iat = now,
  exp = now + ttl,
}
if ua ~= "" then succ.ua = ua end
if ip ~= "" then succ.ip = ip end
local encoded = cjson.encode(succ)

redis.call("SET", KEYS[3], encoded, "EX", ttl)
redis.call("SADD", user_key(rec.uid), next_hex)
redis.call("SADD", fam_index_key(rec.fam), next_hex)

fam.rc = fam.rc + 1
fam.lu = now
redis.call("SET", fam_key(rec.fam), cjson.encode(fam), "EX", ttl + bl_ttl)
redis.call("EXPIRE", fam_index_key(rec.fam), ttl + bl_ttl)

return {3, encoded}
`

// revokeScript consumes a single record with no family impact.
const revokeScript = luaHelpers + `
local provided_hex = ARGV[2]
local bl_ttl = tonumber(ARGV[3])

local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end

redis.call("DEL", KEYS[1])

local ok, rec = pcall(cjson.decode, data)
if ok and rec and rec.uid then
  redis.call("SREM", user_key(rec.uid), provided_hex)
  redis.call("SREM", fam_index_key(rec.fam), provided_hex)
  redis.call("SET", KEYS[2], rec.fam, "EX", bl_ttl)
end

return 1
`

const revokeAllScript = luaHelpers + `
local bl_ttl = tonumber(ARGV[2])

local members = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, hex in ipairs(members) do
  local rkey = record_key(hex)
  local rdata = redis.call("GET", rkey)
  if rdata then
    redis.call("DEL", rkey)
    removed = removed + 1
    local ok, rec = pcall(cjson.decode, rdata)
    if ok and rec and rec.fam then
      redis.call("SET", bl_key(hex), rec.fam, "EX", bl_ttl)
      redis.call("DEL", fam_key(rec.fam))
      redis.call("DEL", fam_index_key(rec.fam))
    end
  end
end
redis.call("DEL", KEYS[1])
return removed
`

const invalidateFamilyScript = luaHelpers + `
local removed = cascade(ARGV[2], tonumber(ARGV[3]), tonumber(ARGV[4]))
return removed
`

// pruneEntryScript reconciles one index member against its record. Sharing
// the script path with the consume operations means a sweep racing an
// in-flight rotation observes either the old record or the successor, never
// a half-consumed state.
const pruneEntryScript = `
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 0
end
if redis.call("EXISTS", KEYS[3]) == 1 then
  return 0
end
return redis.call("SREM", KEYS[1], ARGV[1])
`

func replyString(parts []interface{}, i int) string {
	if len(parts) <= i {
		return ""
	}
	switch v := parts[i].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// conflictFromReply attaches the family and user identity a conflict reply
// carries to its sentinel.
func conflictFromReply(sentinel error, parts []interface{}) error {
	return &FamilyConflictError{
		Sentinel: sentinel,
		FamilyID: replyString(parts, 1),
		UserID:   replyString(parts, 2),
	}
}

var (
	rotateLua           = redis.NewScript(rotateScript)
	revokeLua           = redis.NewScript(revokeScript)
	revokeAllLua        = redis.NewScript(revokeAllScript)
	invalidateFamilyLua = redis.NewScript(invalidateFamilyScript)
	pruneEntryLua       = redis.NewScript(pruneEntryScript)
)

// RedisStore is the production [Store]: records, families, and blacklist
// entries live in Redis with native TTL eviction, and every consume path is
// a Lua compare-and-delete.
//
// RedisStore instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RedisStore struct {
	redis        redis.UniversalClient
	prefix       string
	blacklistTTL time.Duration
	now          func() time.Time
}

// NewRedisStore creates a [RedisStore]. prefix sets the key namespace;
// blacklistTTL bounds how long consumed hashes are retained for reuse
// detection and should be refresh-TTL plus a clock-skew buffer.
func NewRedisStore(client redis.UniversalClient, prefix string, blacklistTTL time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "gt"
	}
	if blacklistTTL <= 0 {
		blacklistTTL = 7*24*time.Hour + 2*time.Minute
	}
	return &RedisStore{
		redis:        client,
		prefix:       prefix,
		blacklistTTL: blacklistTTL,
		now:          time.Now,
	}
}

// SetClock overrides the store's time source. Intended for tests that need
// to drive virtual time through expiry windows.
func (s *RedisStore) SetClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *RedisStore) recordKey(hash [32]byte) string {
	return s.prefix + ":r:" + hex.EncodeToString(hash[:])
}

func (s *RedisStore) blacklistKey(hash [32]byte) string {
	return s.prefix + ":b:" + hex.EncodeToString(hash[:])
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

func (s *RedisStore) familyKey(familyID string) string {
	return s.prefix + ":f:" + familyID
}

func (s *RedisStore) familyIndexKey(familyID string) string {
	return s.prefix + ":fi:" + familyID
}

// Save persists a fresh login record together with its family.
//
//	Performance: 1 TxPipelined round trip (5 commands).
func (s *RedisStore) Save(ctx context.Context, rec *Record, fam *Family) error {
	data, err := Encode(rec)
	if err != nil {
		return err
	}
	famData, err := EncodeFamily(fam)
	if err != nil {
		return err
	}

	ttl := time.Unix(rec.ExpiresAt, 0).Sub(s.now())
	if ttl <= 0 {
		return ErrTokenExpired
	}
	hashHex := hex.EncodeToString(rec.TokenHash[:])

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(rec.TokenHash), data, ttl)
		pipe.SAdd(ctx, s.userKey(rec.UserID), hashHex)
		pipe.Set(ctx, s.familyKey(fam.FamilyID), famData, ttl+s.blacklistTTL)
		pipe.SAdd(ctx, s.familyIndexKey(fam.FamilyID), hashHex)
		pipe.Expire(ctx, s.familyIndexKey(fam.FamilyID), ttl+s.blacklistTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// Rotate atomically consumes providedHash and installs the successor.
//
//	Performance: 1 Lua EVALSHA (atomic compare-and-delete).
//	Security: the script is the single serialization point for reuse detection.
func (s *RedisStore) Rotate(ctx context.Context, providedHash, nextHash [32]byte, ttl time.Duration, meta RotateMeta) (*Record, error) {
	if ttl <= 0 {
		return nil, ErrTokenExpired
	}

	result, err := rotateLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(providedHash), s.blacklistKey(providedHash), s.recordKey(nextHash)},
		s.prefix,
		hex.EncodeToString(providedHash[:]),
		hex.EncodeToString(nextHash[:]),
		s.now().Unix(),
		int64(ttl/time.Second),
		int64(s.blacklistTTL/time.Second),
		meta.UserAgent,
		meta.IPAddress,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrStoreUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrStoreUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return nil, ErrTokenNotFound
	case rotateStatusExpired:
		return nil, ErrTokenExpired
	case rotateStatusReuse:
		return nil, conflictFromReply(ErrReuseDetected, parts)
	case rotateStatusCompromised:
		return nil, conflictFromReply(ErrFamilyCompromised, parts)
	case rotateStatusCorrupt:
		return nil, ErrBlobCorrupt
	case rotateStatusRotated:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing successor payload", ErrStoreUnavailable)
		}

		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid successor payload", ErrStoreUnavailable)
		}

		rec, decErr := Decode(blob)
		if decErr != nil {
			return nil, decErr
		}
		rec.TokenHash = nextHash
		return rec, nil
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status", ErrStoreUnavailable)
	}
}

// Revoke consumes a single record and blacklists its hash.
//
//	Performance: 1 Lua EVALSHA.
func (s *RedisStore) Revoke(ctx context.Context, providedHash [32]byte) (bool, error) {
	result, err := revokeLua.Run(
		ctx,
		s.redis,
		[]string{s.recordKey(providedHash), s.blacklistKey(providedHash)},
		s.prefix,
		hex.EncodeToString(providedHash[:]),
		int64(s.blacklistTTL/time.Second),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return result == 1, nil
}

// RevokeAllForUser consumes every record for the user and drops their
// families in one script invocation.
func (s *RedisStore) RevokeAllForUser(ctx context.Context, userID string) error {
	err := revokeAllLua.Run(
		ctx,
		s.redis,
		[]string{s.userKey(userID)},
		s.prefix,
		int64(s.blacklistTTL/time.Second),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// InvalidateFamily runs the compromise cascade for one family.
func (s *RedisStore) InvalidateFamily(ctx context.Context, familyID string) error {
	err := invalidateFamilyLua.Run(
		ctx,
		s.redis,
		[]string{s.familyKey(familyID)},
		s.prefix,
		familyID,
		s.now().Unix(),
		int64(s.blacklistTTL/time.Second),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ListByUser returns the user's active records without mutating any state.
//
//	Performance: 1 SMEMBERS + 1 pipelined MGET-equivalent.
func (s *RedisStore) ListByUser(ctx context.Context, userID string) ([]*Record, error) {
	hashes, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Record{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(hashes) == 0 {
		return []*Record{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(hashes))
	for i, h := range hashes {
		cmds[i] = pipe.Get(ctx, s.prefix+":r:"+h)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	nowUnix := s.now().Unix()
	records := make([]*Record, 0, len(hashes))
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, cmdErr)
		}

		rec, decErr := Decode(data)
		if decErr != nil {
			continue
		}
		if rec.ExpiresAt <= nowUnix {
			continue
		}

		raw, hexErr := hex.DecodeString(hashes[i])
		if hexErr != nil || len(raw) != 32 {
			continue
		}
		copy(rec.TokenHash[:], raw)
		records = append(records, rec)
	}

	return records, nil
}

// GetFamily returns the family blob, including compromised tombstones.
func (s *RedisStore) GetFamily(ctx context.Context, familyID string) (*Family, error) {
	data, err := s.redis.Get(ctx, s.familyKey(familyID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrFamilyNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return DecodeFamily(data)
}

// PruneExpired reconciles index sets against records that Redis TTL eviction
// already removed. Record, family, and blacklist values age out natively;
// set members do not, so the sweep walks them.
//
//	Performance: O(index members), admin/background use only.
func (s *RedisStore) PruneExpired(ctx context.Context) (int, error) {
	removed := 0

	for _, pattern := range []string{s.prefix + ":u:*", s.prefix + ":fi:*"} {
		var cursor uint64
		for {
			keys, next, err := s.redis.Scan(ctx, cursor, pattern, 1000).Result()
			if err != nil {
				return removed, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}

			for _, setKey := range keys {
				members, err := s.redis.SMembers(ctx, setKey).Result()
				if err != nil {
					if errors.Is(err, redis.Nil) {
						continue
					}
					return removed, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
				}
				for _, member := range members {
					n, err := pruneEntryLua.Run(
						ctx,
						s.redis,
						[]string{setKey, s.prefix + ":r:" + member, s.prefix + ":b:" + member},
						member,
					).Int64()
					if err != nil {
						return removed, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
					}
					removed += int(n)
				}
			}

			cursor = next
			if cursor == 0 {
				break
			}
		}
	}

	return removed, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := s.now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}
