package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestRecordBlobRoundTrip(t *testing.T) {
	rec := &Record{
		TokenHash:     sha256.Sum256([]byte("token")),
		UserID:        "u1",
		Email:         "alice@example.com",
		Role:          "admin",
		FamilyID:      "fam-1",
		RotationCount: 7,
		UserAgent:     "go-test/1.0",
		IPAddress:     "203.0.113.7",
		CreatedAt:     1_700_000_000,
		ExpiresAt:     1_700_604_800,
	}

	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.UserID != rec.UserID || got.Email != rec.Email || got.Role != rec.Role {
		t.Fatalf("identity lost: %+v", got)
	}
	if got.FamilyID != rec.FamilyID || got.RotationCount != rec.RotationCount {
		t.Fatalf("lineage lost: %+v", got)
	}
	if got.UserAgent != rec.UserAgent || got.IPAddress != rec.IPAddress {
		t.Fatalf("client metadata lost: %+v", got)
	}
	if got.CreatedAt != rec.CreatedAt || got.ExpiresAt != rec.ExpiresAt {
		t.Fatalf("timestamps lost: %+v", got)
	}
}

func TestRecordBlobOmitsTokenHash(t *testing.T) {
	hash := sha256.Sum256([]byte("token"))
	rec := &Record{
		TokenHash: hash,
		UserID:    "u1",
		Email:     "a@b.c",
		Role:      "user",
		FamilyID:  "fam-1",
	}

	data, err := Encode(rec)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	blob := string(data)
	if strings.Contains(blob, hex.EncodeToString(hash[:])) {
		t.Fatal("token hash leaked into the stored blob")
	}

	// The decoded record has a zero hash; the store restores it from the key.
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.TokenHash != ([32]byte{}) {
		t.Fatal("decoded record carries a hash it should not have")
	}
}

func TestDecodeRejectsCorruptBlobs(t *testing.T) {
	cases := map[string]string{
		"not json":          "{not json",
		"empty object":      "{}",
		"missing version":   `{"uid":"u1","fam":"fam-1"}`,
		"future version":    `{"v":99,"uid":"u1","fam":"fam-1"}`,
		"missing user":      `{"v":1,"fam":"fam-1"}`,
		"missing family":    `{"v":1,"uid":"u1"}`,
	}
	for name, blob := range cases {
		if _, err := Decode([]byte(blob)); !errors.Is(err, ErrBlobCorrupt) {
			t.Fatalf("%s: expected ErrBlobCorrupt, got %v", name, err)
		}
	}
}

func TestEncodeNilRecord(t *testing.T) {
	if _, err := Encode(nil); !errors.Is(err, ErrBlobCorrupt) {
		t.Fatal("nil record must fail closed")
	}
	if _, err := EncodeFamily(nil); !errors.Is(err, ErrBlobCorrupt) {
		t.Fatal("nil family must fail closed")
	}
}

func TestFamilyBlobRoundTrip(t *testing.T) {
	fam := &Family{
		FamilyID:      "fam-1",
		UserID:        "u1",
		RotationCount: 3,
		Compromised:   true,
		CreatedAt:     1_700_000_000,
		LastUsed:      1_700_000_900,
	}

	data, err := EncodeFamily(fam)
	if err != nil {
		t.Fatalf("EncodeFamily: %v", err)
	}

	got, err := DecodeFamily(data)
	if err != nil {
		t.Fatalf("DecodeFamily: %v", err)
	}
	if got.FamilyID != fam.FamilyID || got.UserID != fam.UserID {
		t.Fatalf("identity lost: %+v", got)
	}
	if got.RotationCount != fam.RotationCount || !got.Compromised {
		t.Fatalf("state lost: %+v", got)
	}
	if got.CreatedAt != fam.CreatedAt || got.LastUsed != fam.LastUsed {
		t.Fatalf("timestamps lost: %+v", got)
	}
}

func TestDecodeFamilyRejectsCorruptBlobs(t *testing.T) {
	cases := map[string]string{
		"not json":        "[",
		"empty object":    "{}",
		"future version":  `{"v":2,"fam":"fam-1","uid":"u1"}`,
		"missing user":    `{"v":1,"fam":"fam-1"}`,
		"missing family":  `{"v":1,"uid":"u1"}`,
	}
	for name, blob := range cases {
		if _, err := DecodeFamily([]byte(blob)); !errors.Is(err, ErrBlobCorrupt) {
			t.Fatalf("%s: expected ErrBlobCorrupt, got %v", name, err)
		}
	}
}
