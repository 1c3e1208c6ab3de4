package gem

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// PlayerSnapshot is the complete persistable state for one player:
// zone membership, instance records, learned mastery, unlocks, and the
// externally owned balances the engine carries for it.
type PlayerSnapshot struct {
	PlayerID  string
	ClassID   string
	Stamina   int
	Coins     int
	Zones     ZoneSnapshot
	Mastery   map[string]int
	Unlocks   UnlockSnapshot
	CreatedAt time.Time
}

// SnapshotChecksum is a deterministic digest of a player snapshot,
// guarding against divergent state across save/load or transmission.
type SnapshotChecksum struct {
	Hash      string // SHA-256 of the canonical representation
	Timestamp string // when the checksum was computed
	Version   int    // serialization version
}

// ComputeChecksum generates a deterministic checksum of the snapshot.
// The digest covers sorted, canonical state only; timestamps are
// excluded.
func (s *PlayerSnapshot) ComputeChecksum() (*SnapshotChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(s.canonicalRepresentation())); err != nil {
		return nil, fmt.Errorf("compute snapshot hash: %w", err)
	}
	return &SnapshotChecksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Timestamp: s.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		Version:   1,
	}, nil
}

// canonicalRepresentation builds a string form of the snapshot that is
// independent of map iteration order. Bag order is semantic and kept;
// the unordered zones are sorted.
func (s *PlayerSnapshot) canonicalRepresentation() string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("PLAYER:%s|%s|%d|%d\n", s.PlayerID, s.ClassID, s.Stamina, s.Coins))

	buf.WriteString("BAG:")
	buf.WriteString(strings.Join(s.Zones.Bag, ","))
	buf.WriteString("\n")

	for _, zone := range []struct {
		name string
		ids  []string
	}{
		{"HAND", s.Zones.Hand},
		{"DISCARD", s.Zones.Discard},
		{"PLAYED", s.Zones.Played},
	} {
		sorted := make([]string, len(zone.ids))
		copy(sorted, zone.ids)
		sort.Strings(sorted)
		buf.WriteString(zone.name + ":")
		buf.WriteString(strings.Join(sorted, ","))
		buf.WriteString("\n")
	}

	instanceIDs := make([]string, 0, len(s.Zones.Instances))
	for id := range s.Zones.Instances {
		instanceIDs = append(instanceIDs, id)
	}
	sort.Strings(instanceIDs)
	for _, id := range instanceIDs {
		inst := s.Zones.Instances[id]
		buf.WriteString(fmt.Sprintf("INSTANCE:%s|%s|%s|%d|%d|%d|%s|%g|%s|%d\n",
			id,
			inst.TemplateID,
			inst.Name,
			inst.Value,
			inst.Cost,
			inst.Duration,
			inst.SpecialEffect,
			inst.DefenseBypass,
			inst.AppliedAugmentationID,
			inst.MasterySnapshot,
		))
	}

	templateIDs := make([]string, 0, len(s.Mastery))
	for id := range s.Mastery {
		templateIDs = append(templateIDs, id)
	}
	sort.Strings(templateIDs)
	for _, id := range templateIDs {
		buf.WriteString(fmt.Sprintf("MASTERY:%s=%d\n", id, s.Mastery[id]))
	}

	classIDs := make([]string, 0, len(s.Unlocks.ByClass))
	for id := range s.Unlocks.ByClass {
		classIDs = append(classIDs, id)
	}
	sort.Strings(classIDs)
	for _, classID := range classIDs {
		buf.WriteString(fmt.Sprintf("UNLOCKS:%s=%s\n", classID, strings.Join(s.Unlocks.ByClass[classID], ",")))
	}
	buf.WriteString("UNLOCKS_GLOBAL:")
	buf.WriteString(strings.Join(s.Unlocks.Global, ","))
	buf.WriteString("\n")

	return buf.String()
}

// VerifyChecksum reports whether the snapshot matches a stored checksum.
func (s *PlayerSnapshot) VerifyChecksum(expected *SnapshotChecksum) (bool, error) {
	computed, err := s.ComputeChecksum()
	if err != nil {
		return false, err
	}
	return computed.Hash == expected.Hash, nil
}

// SerializeToBytes encodes the snapshot with gob, the format used for
// save files and the persistence store.
func (s *PlayerSnapshot) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeSnapshot decodes a gob-encoded player snapshot.
func DeserializeSnapshot(data []byte) (*PlayerSnapshot, error) {
	var snap PlayerSnapshot
	if err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// ValidateSerializationRoundtrip checks that a snapshot survives
// encode/decode without data loss by comparing checksums.
func ValidateSerializationRoundtrip(snap *PlayerSnapshot) error {
	original, err := snap.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("compute original checksum: %w", err)
	}

	data, err := snap.SerializeToBytes()
	if err != nil {
		return err
	}
	decoded, err := DeserializeSnapshot(data)
	if err != nil {
		return err
	}

	restored, err := decoded.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("compute restored checksum: %w", err)
	}
	if original.Hash != restored.Hash {
		return fmt.Errorf("checksum mismatch: original=%s, restored=%s", original.Hash, restored.Hash)
	}
	return nil
}
