package app

import (
	"context"
	"sync"

	"github.com/dkeye/memoboard/internal/core"
	"github.com/dkeye/memoboard/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Registry is the in-process member store. Documents are copied on the way
// in and out so callers get the same load/modify/save behavior as with a
// real document database.
type Registry struct {
	mu      sync.RWMutex
	members map[domain.MemberID]*domain.Member
	byName  map[string]domain.MemberID
}

var _ core.MemberStore = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		members: make(map[domain.MemberID]*domain.Member),
		byName:  make(map[string]domain.MemberID),
	}
}

func (r *Registry) FindByID(_ context.Context, id domain.MemberID) (*domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	return m.Clone(), nil
}

func (r *Registry) FindByName(_ context.Context, name string) (*domain.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	return r.members[id].Clone(), nil
}

func (r *Registry) Create(_ context.Context, m *domain.Member) (*domain.Member, error) {
	stored := m.Clone()
	stored.ID = domain.MemberID(uuid.NewString())
	if stored.Memos == nil {
		stored.Memos = []domain.Memo{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[stored.ID] = stored
	// the first member created under a name keeps the index entry
	if _, taken := r.byName[stored.Name]; !taken {
		r.byName[stored.Name] = stored.ID
	}
	log.Info().Str("module", "app.registry").Str("member", string(stored.ID)).Str("name", stored.Name).Msg("created member")
	return stored.Clone(), nil
}

func (r *Registry) Save(_ context.Context, m *domain.Member) error {
	stored := m.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[stored.ID] = stored
	if _, taken := r.byName[stored.Name]; !taken {
		r.byName[stored.Name] = stored.ID
	}
	log.Debug().Str("module", "app.registry").Str("member", string(stored.ID)).Int("memos", len(stored.Memos)).Msg("saved member")
	return nil
}

func (r *Registry) Close(context.Context) error { return nil }

// Len reports how many member documents are held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
