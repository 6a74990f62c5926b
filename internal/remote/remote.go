// Package remote defines the contract of the activities API consumed by the
// sync engine, the classified failures it reports, and an HTTP implementation.
package remote

import (
	"context"

	"example.com/activitysync/internal/domain"
	"example.com/activitysync/internal/query"
)

// Page is one slice of the remote activity collection.
type Page struct {
	Activities []domain.Activity
	Pagination domain.Pagination
}

// Activities is the remote activity collection. Every error returned is a
// *Failure or wraps one.
type Activities interface {
	List(ctx context.Context, params query.Params) (Page, error)
	Get(ctx context.Context, id string) (domain.Activity, error)
	// Create sends a draft whose ID was generated by the client. Implementations
	// must honour that ID: no reconciliation step exists after creation.
	Create(ctx context.Context, draft domain.ActivityDraft) error
	Update(ctx context.Context, patch domain.ActivityPatch) error
	Delete(ctx context.Context, id string) error
	// Attend toggles attendance for the caller, or cancellation when the caller hosts.
	Attend(ctx context.Context, id string) error
}

// Profiles is the remote profile API used by the follow feature.
type Profiles interface {
	UpdateFollowing(ctx context.Context, username string) error
}
