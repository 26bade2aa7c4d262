package memory

import (
	"encoding/json"
	"fmt"

	"flowpanel/pkg/domain"
)

// Bucket names used by the snapshotting backends. Each bucket holds one JSON
// document.
const (
	BucketProject  = "project"
	BucketReagents = "reagents"
	BucketTubes    = "tubes"
	BucketVolumes  = "volumes"
)

// Buckets lists every bucket in write order.
var Buckets = []string{BucketProject, BucketReagents, BucketTubes, BucketVolumes}

type projectMeta struct {
	Name    string `json:"project_name"`
	SavedAt string `json:"save_time,omitempty"`
}

// EncodeBuckets splits a snapshot into bucket payloads.
func EncodeBuckets(s Snapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	meta := projectMeta{Name: s.Name}
	if !s.SavedAt.IsZero() {
		meta.SavedAt = s.SavedAt.Format("2006-01-02T15:04:05.999999999Z07:00")
	}
	var err error
	if out[BucketProject], err = json.Marshal(meta); err != nil {
		return nil, fmt.Errorf("encode %s: %w", BucketProject, err)
	}
	if out[BucketReagents], err = json.Marshal(s.Reagents); err != nil {
		return nil, fmt.Errorf("encode %s: %w", BucketReagents, err)
	}
	if out[BucketTubes], err = json.Marshal(s.Tubes); err != nil {
		return nil, fmt.Errorf("encode %s: %w", BucketTubes, err)
	}
	if out[BucketVolumes], err = json.Marshal(s.Volumes); err != nil {
		return nil, fmt.Errorf("encode %s: %w", BucketVolumes, err)
	}
	return out, nil
}

// DecodeBuckets rebuilds a snapshot from bucket payloads. Missing buckets
// leave their part of the project empty or at defaults.
func DecodeBuckets(payloads map[string][]byte) (Snapshot, error) {
	snapshot := domain.NewProject("")
	if data := payloads[BucketProject]; len(data) > 0 {
		// The project record codec parses the timestamp layouts.
		var meta Snapshot
		if err := json.Unmarshal(data, &meta); err != nil {
			return Snapshot{}, fmt.Errorf("decode %s: %w", BucketProject, err)
		}
		snapshot.Name = meta.Name
		snapshot.SavedAt = meta.SavedAt
	}
	if data := payloads[BucketReagents]; len(data) > 0 {
		if err := json.Unmarshal(data, snapshot.Reagents); err != nil {
			return Snapshot{}, fmt.Errorf("decode %s: %w", BucketReagents, err)
		}
	}
	if data := payloads[BucketTubes]; len(data) > 0 {
		if err := json.Unmarshal(data, snapshot.Tubes); err != nil {
			return Snapshot{}, fmt.Errorf("decode %s: %w", BucketTubes, err)
		}
	}
	if data := payloads[BucketVolumes]; len(data) > 0 {
		if err := json.Unmarshal(data, &snapshot.Volumes); err != nil {
			return Snapshot{}, fmt.Errorf("decode %s: %w", BucketVolumes, err)
		}
	}
	return snapshot, nil
}
