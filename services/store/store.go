// Package store persists property records with dedup on the external
// reference.
package store

import (
	"context"
	"fmt"
	"strings"

	"sjsage522/estateworker/internal/models"
)

// DuplicatePolicy decides what happens when a record already exists.
type DuplicatePolicy string

const (
	// PolicySkip leaves the stored record untouched.
	PolicySkip DuplicatePolicy = "skip"
	// PolicyOverwrite replaces the stored record and its images.
	PolicyOverwrite DuplicatePolicy = "overwrite"
)

// ParsePolicy reads a policy name.
func ParsePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicySkip, PolicyOverwrite:
		return p, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", s)
	}
}

// Outcome is the result of saving one record.
type Outcome string

const (
	OutcomeInserted Outcome = "inserted"
	OutcomeUpdated  Outcome = "updated"
	OutcomeSkipped  Outcome = "skipped"
)

// Sink is a record destination keyed by PropertyRecord.Reference.
type Sink interface {
	Exists(ctx context.Context, reference string) (bool, error)
	Save(ctx context.Context, rec *models.PropertyRecord, policy DuplicatePolicy) (Outcome, error)
	Close() error
}
