package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ChecksumAlgo is the algorithm name recorded in meta.checksum_algo.
const ChecksumAlgo = "sha256"

// SchemaVersion is the on-disk store schema_version.
const SchemaVersion = 1

// ManagedBy is the meta.managed_by marker.
const ManagedBy = "agentctl"

// Meta is the store document's {meta: {...}} block (spec §3).
type Meta struct {
	SchemaVersion int    `json:"schema_version"`
	ManagedBy     string `json:"managed_by"`
	ChecksumAlgo  string `json:"checksum_algo"`
	Checksum      string `json:"checksum"`
}

// Document is the on-disk/exported store shape: {tasks, meta}.
type Document struct {
	Tasks []Task `json:"tasks"`
	Meta  Meta   `json:"meta"`
}

// canonicalMarshal serializes v compactly with map keys sorted, the
// form encoding/json already produces for map[string]T values — struct
// fields are round-tripped through a generic map so struct-declaration
// order never leaks into the checksum input.
func canonicalMarshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// Checksum computes sha256 of the canonical JSON of tasks (sorted by
// id, compact, sorted keys), spec §3's meta.checksum.
func Checksum(tasks []Task) (string, error) {
	canon, err := CanonicalJSON(tasks)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// BuildMeta computes a fresh Meta block for tasks.
func BuildMeta(tasks []Task) (Meta, error) {
	sum, err := Checksum(tasks)
	if err != nil {
		return Meta{}, err
	}
	return Meta{
		SchemaVersion: SchemaVersion,
		ManagedBy:     ManagedBy,
		ChecksumAlgo:  ChecksumAlgo,
		Checksum:      sum,
	}, nil
}

// VerifyChecksum reports whether doc.Meta.Checksum matches the
// recomputed checksum of doc.Tasks (lint's manual-edit detector).
func VerifyChecksum(doc Document) (bool, error) {
	want, err := Checksum(doc.Tasks)
	if err != nil {
		return false, err
	}
	return want == doc.Meta.Checksum, nil
}
