package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/memoboard/internal/core"
	"github.com/dkeye/memoboard/internal/domain"
	"github.com/dkeye/memoboard/internal/metrics"
	"github.com/rs/zerolog/log"
)

// MemoService is the business layer between the HTTP handlers and the
// member store. Every mutation loads the whole member, changes it in memory
// and saves it back; there is no concurrency token.
type MemoService struct {
	store   core.MemberStore
	now     core.Clock
	metrics *metrics.Metrics
}

type Option func(*MemoService)

func WithClock(clock core.Clock) Option {
	return func(s *MemoService) {
		if clock != nil {
			s.now = clock
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *MemoService) { s.metrics = m }
}

func NewMemoService(store core.MemberStore, opts ...Option) *MemoService {
	s := &MemoService{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreateMember returns the member registered under name, creating it
// with an empty memo list on first login. Two concurrent first logins with
// the same name may both create a member.
func (s *MemoService) GetOrCreateMember(ctx context.Context, name string) (*domain.Member, error) {
	name, err := domain.NormalizeName(name)
	if err != nil {
		s.metrics.Op("login", metrics.ResultInvalid)
		return nil, err
	}

	m, err := s.store.FindByName(ctx, name)
	switch {
	case err == nil:
		s.metrics.Op("login", metrics.ResultOK)
		return m, nil
	case !errors.Is(err, domain.ErrMemberNotFound):
		s.metrics.Op("login", metrics.ResultError)
		return nil, fmt.Errorf("find member %q: %w", name, err)
	}

	m, err = s.store.Create(ctx, domain.NewMember(name))
	if err != nil {
		s.metrics.Op("login", metrics.ResultError)
		return nil, fmt.Errorf("create member %q: %w", name, err)
	}
	s.metrics.Op("login", metrics.ResultOK)
	log.Info().Str("module", "app.memo").Str("member", string(m.ID)).Str("name", name).Msg("new member")
	return m, nil
}

func (s *MemoService) Member(ctx context.Context, id domain.MemberID) (*domain.Member, error) {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrMemberNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load member %s: %w", id, err)
	}
	return m, nil
}

func (s *MemoService) AddMemo(ctx context.Context, memberID domain.MemberID, content string) (*domain.Member, error) {
	content, err := domain.NormalizeContent(content)
	if err != nil {
		s.metrics.Op("add", metrics.ResultInvalid)
		return nil, err
	}
	return s.mutate(ctx, "add", memberID, func(m *domain.Member) {
		memo := m.AddMemo(content, s.now())
		log.Debug().Str("module", "app.memo").Str("member", string(m.ID)).Str("memo", string(memo.ID)).Msg("memo added")
	})
}

// UpdateMemo rewrites the content of memoID. An unknown memo id is not an
// error: the member is saved unchanged.
func (s *MemoService) UpdateMemo(ctx context.Context, memberID domain.MemberID, memoID domain.MemoID, content string) (*domain.Member, error) {
	if memoID == "" {
		s.metrics.Op("update", metrics.ResultInvalid)
		return nil, domain.ErrMemoIDEmpty
	}
	content, err := domain.NormalizeContent(content)
	if err != nil {
		s.metrics.Op("update", metrics.ResultInvalid)
		return nil, err
	}
	return s.mutate(ctx, "update", memberID, func(m *domain.Member) {
		if !m.UpdateMemo(memoID, content, s.now()) {
			log.Debug().Str("module", "app.memo").Str("member", string(m.ID)).Str("memo", string(memoID)).Msg("memo to update not found")
		}
	})
}

// DeleteMemo removes every memo with memoID. Removing nothing is not an error.
func (s *MemoService) DeleteMemo(ctx context.Context, memberID domain.MemberID, memoID domain.MemoID) (*domain.Member, error) {
	if memoID == "" {
		s.metrics.Op("delete", metrics.ResultInvalid)
		return nil, domain.ErrMemoIDEmpty
	}
	return s.mutate(ctx, "delete", memberID, func(m *domain.Member) {
		n := m.DeleteMemo(memoID)
		log.Debug().Str("module", "app.memo").Str("member", string(m.ID)).Str("memo", string(memoID)).Int("removed", n).Msg("memo deleted")
	})
}

func (s *MemoService) mutate(ctx context.Context, op string, memberID domain.MemberID, change func(*domain.Member)) (*domain.Member, error) {
	m, err := s.store.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, domain.ErrMemberNotFound) {
			s.metrics.Op(op, metrics.ResultNotFound)
			return nil, err
		}
		s.metrics.Op(op, metrics.ResultError)
		return nil, fmt.Errorf("load member %s: %w", memberID, err)
	}

	change(m)

	if err := s.store.Save(ctx, m); err != nil {
		s.metrics.Op(op, metrics.ResultError)
		return nil, fmt.Errorf("save member %s: %w", memberID, err)
	}
	s.metrics.Op(op, metrics.ResultOK)
	return m, nil
}
