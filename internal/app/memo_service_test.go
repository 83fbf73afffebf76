package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkeye/memoboard/internal/domain"
	"github.com/dkeye/memoboard/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyStore counts writes and can be told to fail.
type spyStore struct {
	*Registry
	saves   int
	creates int
	findErr error
	saveErr error
}

func newSpyStore() *spyStore { return &spyStore{Registry: NewRegistry()} }

func (s *spyStore) FindByID(ctx context.Context, id domain.MemberID) (*domain.Member, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.Registry.FindByID(ctx, id)
}

func (s *spyStore) FindByName(ctx context.Context, name string) (*domain.Member, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.Registry.FindByName(ctx, name)
}

func (s *spyStore) Create(ctx context.Context, m *domain.Member) (*domain.Member, error) {
	s.creates++
	return s.Registry.Create(ctx, m)
}

func (s *spyStore) Save(ctx context.Context, m *domain.Member) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.Registry.Save(ctx, m)
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*MemoService, *spyStore, *fixedClock) {
	t.Helper()
	store := newSpyStore()
	clock := &fixedClock{t: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	return NewMemoService(store, WithClock(clock.now)), store, clock
}

func TestGetOrCreateMemberIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	first, err := svc.GetOrCreateMember(ctx, "alice")
	require.NoError(t, err)
	second, err := svc.GetOrCreateMember(ctx, "  alice  ")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.creates)
	assert.Empty(t, first.Memos)
}

func TestGetOrCreateMemberRejectsBlankName(t *testing.T) {
	svc, store, _ := newTestService(t)

	_, err := svc.GetOrCreateMember(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrNameEmpty)
	assert.Zero(t, store.creates)
}

func TestGetOrCreateMemberWrapsStoreError(t *testing.T) {
	svc, store, _ := newTestService(t)
	boom := errors.New("connection refused")
	store.findErr = boom

	_, err := svc.GetOrCreateMember(context.Background(), "alice")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Zero(t, store.creates)
}

func TestAddMemo(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)
	m, err := svc.GetOrCreateMember(ctx, "alice")
	require.NoError(t, err)

	before := clock.now()
	updated, err := svc.AddMemo(ctx, m.ID, "X")
	require.NoError(t, err)

	require.Len(t, updated.Memos, 1)
	last := updated.Memos[len(updated.Memos)-1]
	assert.Equal(t, "X", last.Content)
	assert.False(t, last.Timestamp.Before(before))
	assert.NotEmpty(t, last.ID)

	reloaded, err := svc.Member(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, reloaded)
}

func TestAddMemoUnknownMember(t *testing.T) {
	svc, store, _ := newTestService(t)

	_, err := svc.AddMemo(context.Background(), "ghost", "hello")
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
	assert.Zero(t, store.saves)
}

func TestAddMemoRejectsBlankContent(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	m, err := svc.GetOrCreateMember(ctx, "alice")
	require.NoError(t, err)

	_, err = svc.AddMemo(ctx, m.ID, " \n ")
	assert.ErrorIs(t, err, domain.ErrContentEmpty)
	assert.Zero(t, store.saves)
}

func TestAddMemoKeepsIDsUnique(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	m, err := svc.GetOrCreateMember(ctx, "alice")
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		m, err = svc.AddMemo(ctx, m.ID, "memo")
		require.NoError(t, err)
	}
	seen := map[domain.MemoID]bool{}
	for _, memo := range m.Memos {
		assert.False(t, seen[memo.ID], "duplicate memo id %s", memo.ID)
		seen[memo.ID] = true
	}
}

func TestUpdateMemoUnknownIDLeavesListUnchanged(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	m, _ := svc.GetOrCreateMember(ctx, "alice")
	m, err := svc.AddMemo(ctx, m.ID, "hello")
	require.NoError(t, err)
	saves := store.saves

	updated, err := svc.UpdateMemo(ctx, m.ID, "nope", "changed")
	require.NoError(t, err)
	assert.Equal(t, m.Memos, updated.Memos)
	assert.Equal(t, saves+1, store.saves)
}

func TestUpdateMemoRefreshesTimestamp(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)
	m, _ := svc.GetOrCreateMember(ctx, "alice")
	m, err := svc.AddMemo(ctx, m.ID, "hello")
	require.NoError(t, err)

	clock.advance(time.Hour)
	updated, err := svc.UpdateMemo(ctx, m.ID, m.Memos[0].ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", updated.Memos[0].Content)
	assert.True(t, updated.Memos[0].Timestamp.Equal(clock.now()))
	assert.Equal(t, m.Memos[0].ID, updated.Memos[0].ID)
}

func TestUpdateMemoValidation(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	m, _ := svc.GetOrCreateMember(ctx, "alice")

	_, err := svc.UpdateMemo(ctx, m.ID, "", "content")
	assert.ErrorIs(t, err, domain.ErrMemoIDEmpty)
	_, err = svc.UpdateMemo(ctx, m.ID, "some", "")
	assert.ErrorIs(t, err, domain.ErrContentEmpty)
	_, err = svc.UpdateMemo(ctx, "ghost", "some", "content")
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
	assert.Zero(t, store.saves)
}

func TestDeleteMemoLeavesOthersUntouched(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)
	m, _ := svc.GetOrCreateMember(ctx, "alice")
	for _, c := range []string{"a", "b", "c"} {
		var err error
		m, err = svc.AddMemo(ctx, m.ID, c)
		require.NoError(t, err)
		clock.advance(time.Minute)
	}
	a, b, c := m.Memos[0], m.Memos[1], m.Memos[2]

	updated, err := svc.DeleteMemo(ctx, m.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.Memo{a, c}, updated.Memos)

	updated, err = svc.DeleteMemo(ctx, m.ID, "missing")
	require.NoError(t, err)
	assert.Equal(t, []domain.Memo{a, c}, updated.Memos)
}

func TestDeleteMemoValidation(t *testing.T) {
	svc, store, _ := newTestService(t)

	_, err := svc.DeleteMemo(context.Background(), "ghost", "")
	assert.ErrorIs(t, err, domain.ErrMemoIDEmpty)
	_, err = svc.DeleteMemo(context.Background(), "ghost", "m1")
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
	assert.Zero(t, store.saves)
}

func TestSaveErrorIsWrapped(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	m, _ := svc.GetOrCreateMember(ctx, "alice")
	boom := errors.New("disk full")
	store.saveErr = boom

	_, err := svc.AddMemo(ctx, m.ID, "hello")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "save member")
}

func TestMemoScenario(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	m, err := svc.GetOrCreateMember(ctx, "alice")
	require.NoError(t, err)
	m, err = svc.AddMemo(ctx, m.ID, "hello")
	require.NoError(t, err)
	m, err = svc.AddMemo(ctx, m.ID, "world")
	require.NoError(t, err)
	helloID := m.Memos[0].ID

	m, err = svc.UpdateMemo(ctx, m.ID, helloID, "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "world"}, contents(m))

	m, err = svc.DeleteMemo(ctx, m.ID, helloID)
	require.NoError(t, err)
	assert.Equal(t, []string{"world"}, contents(m))
}

func TestServiceRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	reg := metrics.New()
	svc := NewMemoService(NewRegistry(), WithMetrics(reg))

	m, err := svc.GetOrCreateMember(ctx, "alice")
	require.NoError(t, err)
	_, err = svc.AddMemo(ctx, m.ID, "hello")
	require.NoError(t, err)
	_, err = svc.AddMemo(ctx, "ghost", "hello")
	require.Error(t, err)

	rec := scrape(t, reg)
	assert.Contains(t, rec, `memoboard_operations_total{op="add",result="ok"} 1`)
	assert.Contains(t, rec, `memoboard_operations_total{op="add",result="not_found"} 1`)
	assert.Contains(t, rec, `memoboard_operations_total{op="login",result="ok"} 1`)
}

func contents(m *domain.Member) []string {
	out := make([]string, 0, len(m.Memos))
	for _, memo := range m.Memos {
		out = append(out, memo.Content)
	}
	return out
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
