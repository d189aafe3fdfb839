package session

import (
	"encoding/json"
	"errors"
)

// CurrentSchemaVersion is the record/family blob schema written by this build.
const CurrentSchemaVersion = 1

// ErrBlobCorrupt is returned when a stored blob cannot be decoded.
var ErrBlobCorrupt = errors.New("session blob corrupt")

// recordBlob is the wire form of a Record. The token hash is deliberately
// absent: it is the store key, never part of the value.
type recordBlob struct {
	V   uint8  `json:"v"`
	UID string `json:"uid"`
	Em  string `json:"em"`
	Ro  string `json:"ro"`
	Fam string `json:"fam"`
	RC  uint32 `json:"rc"`
	UA  string `json:"ua,omitempty"`
	IP  string `json:"ip,omitempty"`
	IAT int64  `json:"iat"`
	Exp int64  `json:"exp"`
}

type familyBlob struct {
	V    uint8  `json:"v"`
	Fam  string `json:"fam"`
	UID  string `json:"uid"`
	RC   uint32 `json:"rc"`
	Comp bool   `json:"comp"`
	IAT  int64  `json:"iat"`
	LU   int64  `json:"lu"`
}

// Encode serializes a Record for storage.
func Encode(rec *Record) ([]byte, error) {
	if rec == nil {
		return nil, ErrBlobCorrupt
	}
	return json.Marshal(recordBlob{
		V:   CurrentSchemaVersion,
		UID: rec.UserID,
		Em:  rec.Email,
		Ro:  rec.Role,
		Fam: rec.FamilyID,
		RC:  rec.RotationCount,
		UA:  rec.UserAgent,
		IP:  rec.IPAddress,
		IAT: rec.CreatedAt,
		Exp: rec.ExpiresAt,
	})
}

// Decode deserializes a Record blob. The caller restores TokenHash from the
// key it looked up.
func Decode(data []byte) (*Record, error) {
	var blob recordBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, errors.Join(ErrBlobCorrupt, err)
	}
	if blob.V == 0 || blob.V > CurrentSchemaVersion {
		return nil, ErrBlobCorrupt
	}
	if blob.UID == "" || blob.Fam == "" {
		return nil, ErrBlobCorrupt
	}

	return &Record{
		UserID:        blob.UID,
		Email:         blob.Em,
		Role:          blob.Ro,
		FamilyID:      blob.Fam,
		RotationCount: blob.RC,
		UserAgent:     blob.UA,
		IPAddress:     blob.IP,
		CreatedAt:     blob.IAT,
		ExpiresAt:     blob.Exp,
	}, nil
}

// EncodeFamily serializes a Family for storage.
func EncodeFamily(fam *Family) ([]byte, error) {
	if fam == nil {
		return nil, ErrBlobCorrupt
	}
	return json.Marshal(familyBlob{
		V:    CurrentSchemaVersion,
		Fam:  fam.FamilyID,
		UID:  fam.UserID,
		RC:   fam.RotationCount,
		Comp: fam.Compromised,
		IAT:  fam.CreatedAt,
		LU:   fam.LastUsed,
	})
}

// DecodeFamily deserializes a Family blob.
func DecodeFamily(data []byte) (*Family, error) {
	var blob familyBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, errors.Join(ErrBlobCorrupt, err)
	}
	if blob.V == 0 || blob.V > CurrentSchemaVersion {
		return nil, ErrBlobCorrupt
	}
	if blob.Fam == "" || blob.UID == "" {
		return nil, ErrBlobCorrupt
	}

	return &Family{
		FamilyID:      blob.Fam,
		UserID:        blob.UID,
		RotationCount: blob.RC,
		Compromised:   blob.Comp,
		CreatedAt:     blob.IAT,
		LastUsed:      blob.LU,
	}, nil
}
