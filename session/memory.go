package session

import (
	"context"
	"sync"
	"time"
)

type blacklistEntry struct {
	familyID  string
	expiresAt int64
}

// MemoryStore is the reference [Store]: every operation runs under one mutex,
// which trivially satisfies the exactly-one-winner rotation guarantee. It is
// intended for tests and single-process deployments; production traffic
// belongs on [RedisStore].
type MemoryStore struct {
	mu sync.Mutex

	records   map[[32]byte]*Record
	families  map[string]*Family
	byUser    map[string]map[[32]byte]struct{}
	byFamily  map[string]map[[32]byte]struct{}
	blacklist map[[32]byte]blacklistEntry

	blacklistTTL time.Duration
	now          func() time.Time
}

// NewMemoryStore creates a [MemoryStore]. blacklistTTL bounds consumed-hash
// retention; clock overrides the time source and may be nil.
func NewMemoryStore(blacklistTTL time.Duration, clock func() time.Time) *MemoryStore {
	if blacklistTTL <= 0 {
		blacklistTTL = 7*24*time.Hour + 2*time.Minute
	}
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{
		records:      make(map[[32]byte]*Record),
		families:     make(map[string]*Family),
		byUser:       make(map[string]map[[32]byte]struct{}),
		byFamily:     make(map[string]map[[32]byte]struct{}),
		blacklist:    make(map[[32]byte]blacklistEntry),
		blacklistTTL: blacklistTTL,
		now:          clock,
	}
}

func (s *MemoryStore) index(m map[string]map[[32]byte]struct{}, key string, hash [32]byte) {
	set, ok := m[key]
	if !ok {
		set = make(map[[32]byte]struct{})
		m[key] = set
	}
	set[hash] = struct{}{}
}

func (s *MemoryStore) unindex(m map[string]map[[32]byte]struct{}, key string, hash [32]byte) {
	if set, ok := m[key]; ok {
		delete(set, hash)
		if len(set) == 0 {
			delete(m, key)
		}
	}
}

// locked helpers below assume s.mu is held.

func (s *MemoryStore) conflictLocked(sentinel error, familyID string) *FamilyConflictError {
	conflict := &FamilyConflictError{Sentinel: sentinel, FamilyID: familyID}
	if fam, ok := s.families[familyID]; ok {
		conflict.UserID = fam.UserID
	}
	return conflict
}

func (s *MemoryStore) removeLocked(rec *Record, hash [32]byte, addToBlacklist bool) {
	delete(s.records, hash)
	s.unindex(s.byUser, rec.UserID, hash)
	s.unindex(s.byFamily, rec.FamilyID, hash)
	if addToBlacklist {
		s.blacklist[hash] = blacklistEntry{
			familyID:  rec.FamilyID,
			expiresAt: s.now().Add(s.blacklistTTL).Unix(),
		}
	}
}

func (s *MemoryStore) cascadeLocked(familyID string) {
	nowUnix := s.now().Unix()
	if fam, ok := s.families[familyID]; ok {
		fam.Compromised = true
		fam.LastUsed = nowUnix
	}

	for hash := range s.byFamily[familyID] {
		if rec, ok := s.records[hash]; ok {
			delete(s.records, hash)
			s.unindex(s.byUser, rec.UserID, hash)
		}
		s.blacklist[hash] = blacklistEntry{
			familyID:  familyID,
			expiresAt: s.now().Add(s.blacklistTTL).Unix(),
		}
	}
	delete(s.byFamily, familyID)
}

// Save persists a fresh login record together with its family.
func (s *MemoryStore) Save(_ context.Context, rec *Record, fam *Family) error {
	if rec == nil || fam == nil {
		return ErrBlobCorrupt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	fp := *fam
	s.records[rec.TokenHash] = &cp
	s.families[fam.FamilyID] = &fp
	s.index(s.byUser, rec.UserID, rec.TokenHash)
	s.index(s.byFamily, rec.FamilyID, rec.TokenHash)

	return nil
}

// Rotate atomically consumes providedHash and installs the successor. The
// entire lookup-then-consume sequence runs under the store mutex.
func (s *MemoryStore) Rotate(_ context.Context, providedHash, nextHash [32]byte, ttl time.Duration, meta RotateMeta) (*Record, error) {
	if ttl <= 0 {
		return nil, ErrTokenExpired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	rec, ok := s.records[providedHash]
	if !ok {
		if entry, seen := s.blacklist[providedHash]; seen && entry.expiresAt > now.Unix() {
			s.cascadeLocked(entry.familyID)
			return nil, s.conflictLocked(ErrReuseDetected, entry.familyID)
		}
		return nil, ErrTokenNotFound
	}

	if rec.ExpiresAt <= now.Unix() {
		s.removeLocked(rec, providedHash, false)
		return nil, ErrTokenExpired
	}

	fam, ok := s.families[rec.FamilyID]
	if !ok {
		s.removeLocked(rec, providedHash, true)
		s.cascadeLocked(rec.FamilyID)
		return nil, &FamilyConflictError{Sentinel: ErrFamilyCompromised, FamilyID: rec.FamilyID, UserID: rec.UserID}
	}
	if fam.Compromised {
		s.cascadeLocked(rec.FamilyID)
		return nil, &FamilyConflictError{Sentinel: ErrFamilyCompromised, FamilyID: rec.FamilyID, UserID: rec.UserID}
	}

	s.removeLocked(rec, providedHash, true)

	succ := &Record{
		TokenHash:     nextHash,
		UserID:        rec.UserID,
		Email:         rec.Email,
		Role:          rec.Role,
		FamilyID:      rec.FamilyID,
		RotationCount: rec.RotationCount + 1,
		UserAgent:     meta.UserAgent,
		IPAddress:     meta.IPAddress,
		CreatedAt:     now.Unix(),
		ExpiresAt:     now.Add(ttl).Unix(),
	}
	s.records[nextHash] = succ
	s.index(s.byUser, succ.UserID, nextHash)
	s.index(s.byFamily, succ.FamilyID, nextHash)

	fam.RotationCount++
	fam.LastUsed = now.Unix()

	out := *succ
	return &out, nil
}

// Revoke consumes a single record and blacklists its hash; no family impact.
func (s *MemoryStore) Revoke(_ context.Context, providedHash [32]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[providedHash]
	if !ok {
		return false, nil
	}
	s.removeLocked(rec, providedHash, true)
	return true, nil
}

// RevokeAllForUser consumes every record for the user and drops their families.
func (s *MemoryStore) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash := range s.byUser[userID] {
		rec, ok := s.records[hash]
		if !ok {
			continue
		}
		delete(s.records, hash)
		s.unindex(s.byFamily, rec.FamilyID, hash)
		s.blacklist[hash] = blacklistEntry{
			familyID:  rec.FamilyID,
			expiresAt: s.now().Add(s.blacklistTTL).Unix(),
		}
		delete(s.families, rec.FamilyID)
	}
	delete(s.byUser, userID)

	return nil
}

// InvalidateFamily runs the compromise cascade for one family.
func (s *MemoryStore) InvalidateFamily(_ context.Context, familyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cascadeLocked(familyID)
	return nil
}

// ListByUser returns the user's active, non-expired records.
func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowUnix := s.now().Unix()
	records := make([]*Record, 0, len(s.byUser[userID]))
	for hash := range s.byUser[userID] {
		rec, ok := s.records[hash]
		if !ok || rec.ExpiresAt <= nowUnix {
			continue
		}
		cp := *rec
		records = append(records, &cp)
	}

	return records, nil
}

// GetFamily returns the family, including compromised tombstones.
func (s *MemoryStore) GetFamily(_ context.Context, familyID string) (*Family, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fam, ok := s.families[familyID]
	if !ok {
		return nil, ErrFamilyNotFound
	}
	cp := *fam
	return &cp, nil
}

// PruneExpired evicts expired records, aged blacklist entries, and families
// with no surviving references. It shares the store mutex with the consume
// paths, so a sweep racing an in-flight rotation observes either the old
// record or its successor, never a half-consumed state.
func (s *MemoryStore) PruneExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowUnix := s.now().Unix()
	removed := 0

	for hash, rec := range s.records {
		if rec.ExpiresAt <= nowUnix {
			s.removeLocked(rec, hash, false)
			removed++
		}
	}

	liveFamilies := make(map[string]struct{})
	for hash, entry := range s.blacklist {
		if entry.expiresAt <= nowUnix {
			delete(s.blacklist, hash)
			removed++
			continue
		}
		liveFamilies[entry.familyID] = struct{}{}
	}

	for familyID := range s.families {
		if len(s.byFamily[familyID]) > 0 {
			continue
		}
		if _, referenced := liveFamilies[familyID]; referenced {
			continue
		}
		delete(s.families, familyID)
		removed++
	}

	return removed, nil
}

// Ping reports availability; the memory store is always reachable.
func (s *MemoryStore) Ping(_ context.Context) (time.Duration, error) {
	return 0, nil
}
