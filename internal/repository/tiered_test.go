package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valu/keyrotation/internal/model"
)

var errDown = errors.New("dial tcp: connection refused")

// flaky is a primary that can be switched off.
type flaky struct {
	*SQLStore
	down atomic.Bool
}

func (f *flaky) fail() error {
	if f.down.Load() {
		return errDown
	}
	return nil
}

func (f *flaky) Ping(ctx context.Context) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.SQLStore.Ping(ctx)
}

func (f *flaky) ListPlatforms(ctx context.Context, tenantID string) ([]model.Platform, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.SQLStore.ListPlatforms(ctx, tenantID)
}

func (f *flaky) GetPlatform(ctx context.Context, tenantID, id string) (*model.Platform, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.SQLStore.GetPlatform(ctx, tenantID, id)
}

func (f *flaky) InsertPlatform(ctx context.Context, p *model.Platform) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.SQLStore.InsertPlatform(ctx, p)
}

func (f *flaky) UpdatePlatform(ctx context.Context, p *model.Platform) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.SQLStore.UpdatePlatform(ctx, p)
}

func (f *flaky) DeletePlatform(ctx context.Context, tenantID, id string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.SQLStore.DeletePlatform(ctx, tenantID, id)
}

func (f *flaky) IncrementKeyCount(ctx context.Context, tenantID, id string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.SQLStore.IncrementKeyCount(ctx, tenantID, id)
}

func (f *flaky) DecrementKeyCount(ctx context.Context, tenantID, id string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.SQLStore.DecrementKeyCount(ctx, tenantID, id)
}

func (f *flaky) ListKeys(ctx context.Context, tenantID string, kf KeyFilter) ([]model.APIKey, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.SQLStore.ListKeys(ctx, tenantID, kf)
}

func (f *flaky) GetKey(ctx context.Context, tenantID, id string) (*model.APIKey, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.SQLStore.GetKey(ctx, tenantID, id)
}

func (f *flaky) InsertKey(ctx context.Context, k *model.APIKey) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.SQLStore.InsertKey(ctx, k)
}

func (f *flaky) UpdateKey(ctx context.Context, k *model.APIKey) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.SQLStore.UpdateKey(ctx, k)
}

func (f *flaky) DeleteKey(ctx context.Context, tenantID, id string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.SQLStore.DeleteKey(ctx, tenantID, id)
}

func (f *flaky) ListWorkflows(ctx context.Context, tenantID string, wf WorkflowFilter) ([]model.Workflow, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.SQLStore.ListWorkflows(ctx, tenantID, wf)
}

func (f *flaky) GetWorkflow(ctx context.Context, tenantID, id string) (*model.Workflow, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.SQLStore.GetWorkflow(ctx, tenantID, id)
}

func (f *flaky) InsertWorkflow(ctx context.Context, wf *model.Workflow) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.SQLStore.InsertWorkflow(ctx, wf)
}

func (f *flaky) UpdateWorkflow(ctx context.Context, wf *model.Workflow) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.SQLStore.UpdateWorkflow(ctx, wf)
}

func (f *flaky) DeleteWorkflow(ctx context.Context, tenantID, id string) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.SQLStore.DeleteWorkflow(ctx, tenantID, id)
}

func (f *flaky) InsertActivity(ctx context.Context, a *model.Activity) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.SQLStore.InsertActivity(ctx, a)
}

func (f *flaky) ListActivities(ctx context.Context, tenantID string, limit int) ([]model.Activity, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.SQLStore.ListActivities(ctx, tenantID, limit)
}

func (f *flaky) PutPlatform(ctx context.Context, p model.Platform) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.SQLStore.PutPlatform(ctx, p)
}

func (f *flaky) PutKey(ctx context.Context, k model.APIKey) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.SQLStore.PutKey(ctx, k)
}

func (f *flaky) PutWorkflow(ctx context.Context, wf model.Workflow) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.SQLStore.PutWorkflow(ctx, wf)
}

type tieredEnv struct {
	primary  *flaky
	fallback *SQLStore
	store    *Tiered
}

func newTiered(t *testing.T) *tieredEnv {
	t.Helper()
	primary := &flaky{SQLStore: tmpStore(t)}
	fallback := tmpStore(t)
	log := zerolog.Nop()
	store, err := NewTiered(context.Background(), primary, fallback, &log)
	require.NoError(t, err)
	return &tieredEnv{primary: primary, fallback: fallback, store: store}
}

func (e *tieredEnv) status(t *testing.T) TierStatus {
	t.Helper()
	st, err := e.store.Status(context.Background())
	require.NoError(t, err)
	return st
}

func TestUnavailable(t *testing.T) {
	assert.True(t, Unavailable(errDown))
	assert.False(t, Unavailable(nil))
	assert.False(t, Unavailable(ErrNotFound))
	assert.False(t, Unavailable(context.Canceled))
	assert.False(t, Unavailable(&pgconn.PgError{Code: "23505"}))
}

func TestTiered_HealthyWritesMirrorIntoFallback(t *testing.T) {
	ctx := context.Background()
	env := newTiered(t)

	p := newPlatform("t1", "AWS")
	require.NoError(t, env.store.InsertPlatform(ctx, p))
	require.NoError(t, env.store.IncrementKeyCount(ctx, "t1", p.ID))

	mirrored, err := env.fallback.GetPlatform(ctx, "t1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, mirrored.KeyCount)
	assert.False(t, env.status(t).Degraded)
	assert.Equal(t, 0, env.status(t).PendingSync)
}

func TestTiered_ReadsMirrorIntoFallback(t *testing.T) {
	ctx := context.Background()
	env := newTiered(t)

	p := newPlatform("t1", "AWS")
	require.NoError(t, env.primary.SQLStore.InsertPlatform(ctx, p))

	list, err := env.store.ListPlatforms(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = env.fallback.GetPlatform(ctx, "t1", p.ID)
	assert.NoError(t, err)
}

func TestTiered_OutageServesFromFallbackAndJournals(t *testing.T) {
	ctx := context.Background()
	env := newTiered(t)

	p := newPlatform("t1", "AWS")
	require.NoError(t, env.store.InsertPlatform(ctx, p))

	env.primary.down.Store(true)

	list, err := env.store.ListPlatforms(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, env.status(t).Degraded)

	k := newKey("t1", p, "offline", base)
	require.NoError(t, env.store.InsertKey(ctx, k))
	require.NoError(t, env.store.IncrementKeyCount(ctx, "t1", p.ID))

	got, err := env.store.GetKey(ctx, "t1", k.ID)
	require.NoError(t, err)
	assert.Equal(t, "offline", got.Name)
	assert.Equal(t, 2, env.status(t).PendingSync)

	_, err = env.primary.SQLStore.GetKey(ctx, "t1", k.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTiered_SyncReplaysJournal(t *testing.T) {
	ctx := context.Background()
	env := newTiered(t)

	p := newPlatform("t1", "AWS")
	gone := newPlatform("t1", "Old")
	require.NoError(t, env.store.InsertPlatform(ctx, p))
	require.NoError(t, env.store.InsertPlatform(ctx, gone))

	env.primary.down.Store(true)

	k := newKey("t1", p, "offline", base)
	require.NoError(t, env.store.InsertKey(ctx, k))
	require.NoError(t, env.store.IncrementKeyCount(ctx, "t1", p.ID))
	wf := newWorkflow("t1", k, "one", "two")
	require.NoError(t, env.store.InsertWorkflow(ctx, wf))
	require.NoError(t, env.store.InsertActivity(ctx, newActivity("t1", base)))
	require.NoError(t, env.store.DeletePlatform(ctx, "t1", gone.ID))

	_, err := env.store.Sync(ctx)
	assert.ErrorIs(t, err, errDown)
	assert.True(t, env.status(t).Degraded)

	env.primary.down.Store(false)

	// still degraded until synced: reads keep coming from the fallback
	_, err = env.store.GetKey(ctx, "t1", k.ID)
	require.NoError(t, err)

	n, err := env.store.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, TierStatus{}, env.status(t))

	primary := env.primary.SQLStore
	gotKey, err := primary.GetKey(ctx, "t1", k.ID)
	require.NoError(t, err)
	assert.Equal(t, "offline", gotKey.Name)

	gotPlatform, err := primary.GetPlatform(ctx, "t1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotPlatform.KeyCount)

	gotWorkflow, err := primary.GetWorkflow(ctx, "t1", wf.ID)
	require.NoError(t, err)
	assert.Len(t, gotWorkflow.Steps, 2)

	_, err = primary.GetPlatform(ctx, "t1", gone.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	activities, err := primary.ListActivities(ctx, "t1", 10)
	require.NoError(t, err)
	assert.Len(t, activities, 1)
}

func TestTiered_RejectionsDoNotTrip(t *testing.T) {
	ctx := context.Background()
	env := newTiered(t)

	_, err := env.store.GetPlatform(ctx, "t1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, env.status(t).Degraded)
}

func TestTiered_ExpiredRequestContextDoesNotTrip(t *testing.T) {
	env := newTiered(t)

	expired, cancel := context.WithDeadline(context.Background(), base)
	defer cancel()
	_, err := env.store.ListPlatforms(expired, "t1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	err = env.store.InsertPlatform(expired, newPlatform("t1", "Late"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, env.status(t).Degraded)

	ctx := context.Background()
	p := newPlatform("t1", "AWS")
	require.NoError(t, env.primary.SQLStore.InsertPlatform(ctx, p))
	got, err := env.store.GetPlatform(ctx, "t1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "AWS", got.Name)
}

func TestTiered_FallbackWriteRollsBackWithoutJournal(t *testing.T) {
	ctx := context.Background()
	env := newTiered(t)
	env.primary.down.Store(true)

	_, err := env.fallback.db.ExecContext(ctx, `DROP TABLE sync_journal`)
	require.NoError(t, err)

	p := newPlatform("t1", "AWS")
	require.Error(t, env.store.InsertPlatform(ctx, p))

	_, err = env.fallback.GetPlatform(ctx, "t1", p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJournaled(t *testing.T) {
	ctx := context.Background()
	s := tmpStore(t)
	p := newPlatform("t1", "AWS")

	errStop := errors.New("stop")
	err := s.Journaled(ctx, platformEntry("t1", p.ID), func(tx *SQLStore) error {
		require.NoError(t, tx.InsertPlatform(ctx, p))
		return errStop
	})
	require.ErrorIs(t, err, errStop)
	_, err = s.GetPlatform(ctx, "t1", p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	n, err := s.JournalSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.Journaled(ctx, platformEntry("t1", p.ID), func(tx *SQLStore) error {
		return tx.InsertPlatform(ctx, p)
	}))
	_, err = s.GetPlatform(ctx, "t1", p.ID)
	require.NoError(t, err)
	entries, err := s.Journal(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, p.ID, entries[0].EntityID)
}

func TestNewTiered_StartsDegradedWithPendingJournal(t *testing.T) {
	ctx := context.Background()
	primary := &flaky{SQLStore: tmpStore(t)}
	fallback := tmpStore(t)
	require.NoError(t, fallback.AppendJournal(ctx, JournalEntry{Entity: EntityKey, TenantID: "t1", EntityID: "gone"}))

	log := zerolog.Nop()
	store, err := NewTiered(ctx, primary, fallback, &log)
	require.NoError(t, err)
	st, err := store.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Degraded)

	n, err := store.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
