package core

import (
	"context"
	"time"

	"github.com/dkeye/memoboard/internal/domain"
)

// MemberStore is the document persistence port. Members are always read
// and written whole; Save replaces the stored document (last write wins).
type MemberStore interface {
	// FindByID returns domain.ErrMemberNotFound when the id does not resolve.
	FindByID(ctx context.Context, id domain.MemberID) (*domain.Member, error)
	// FindByName is the secondary lookup used at login.
	FindByName(ctx context.Context, name string) (*domain.Member, error)
	// Create persists a new member and returns it with its generated ID.
	Create(ctx context.Context, m *domain.Member) (*domain.Member, error)
	Save(ctx context.Context, m *domain.Member) error
	Close(ctx context.Context) error
}

// Clock lets tests pin timestamps.
type Clock func() time.Time
