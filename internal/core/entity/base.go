// Package entity provides the shared document header embedded by every workflow document.
package entity

import (
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
)

// BaseDocument contains the fields common to all documents.
type BaseDocument struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Number is the human document number (e.g. REQ-2026-00001)
	Number string `db:"number" json:"number"`

	// DeletionMark indicates soft-deleted document
	DeletionMark bool `db:"deletion_mark" json:"deletionMark"`

	// Version for optimistic locking (incremented by the repository on each update)
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy,omitempty"`
}

// NewBaseDocument creates a header with generated ID, created by actor.
func NewBaseDocument(actor string) BaseDocument {
	now := time.Now().UTC()
	return BaseDocument{
		ID:        id.New(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: actor,
		UpdatedBy: actor,
	}
}

// Touch records the actor of a modification.
// Version is advanced by the repository when the update is persisted.
func (b *BaseDocument) Touch(actor string) {
	b.UpdatedAt = time.Now().UTC()
	b.UpdatedBy = actor
}

// GetID returns the document ID.
func (b *BaseDocument) GetID() id.ID { return b.ID }

// GetVersion returns the optimistic lock version.
func (b *BaseDocument) GetVersion() int { return b.Version }

// SetVersion updates the version number (used by repository after a write).
func (b *BaseDocument) SetVersion(v int) { b.Version = v }

// RequireActor validates that an operation names the acting user.
func RequireActor(actor string) error {
	if actor == "" {
		return apperror.NewValidation("actor identity is required").WithDetail("field", "actor")
	}
	return nil
}

// CheckVersion rejects a command prepared against a stale copy of the document.
// expected <= 0 means the caller did not supply a version.
func (b *BaseDocument) CheckVersion(entity string, expected int) error {
	if expected > 0 && expected != b.Version {
		return apperror.NewConcurrentModification(entity, b.ID).
			WithDetail("expected_version", expected).
			WithDetail("actual_version", b.Version)
	}
	return nil
}

// CheckLive refuses work on a soft-deleted document.
// A deleted document stays readable but is gone for every mutation.
func (b *BaseDocument) CheckLive(entity string) error {
	if b.DeletionMark {
		return apperror.NewNotFound(entity, b.ID).WithDetail("deleted", true)
	}
	return nil
}
