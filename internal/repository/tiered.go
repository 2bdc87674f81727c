package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/valu/keyrotation/internal/metrics"
	"github.com/valu/keyrotation/internal/model"
)

const syncBatch = 100

// Unavailable decides whether a primary error means the primary cannot be
// reached, as opposed to the primary rejecting the request. Postgres
// server errors and missing rows are answers, not outages.
func Unavailable(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	var pgErr *pgconn.PgError
	return !errors.As(err, &pgErr)
}

// Tiered is a Store backed by a remote primary and a local fallback.
//
// While the primary is healthy every read and write goes to it and the
// result is copied into the fallback. Once the primary is unavailable the
// store is degraded: reads and writes are served by the fallback and every
// write is journaled. The store stays degraded until Sync has replayed the
// whole journal into the primary.
type Tiered struct {
	primary  Mirror
	fallback *SQLStore
	log      *zerolog.Logger

	// Operations hold gate shared; Sync holds it exclusively so that no
	// write slips in between reading a journaled row and copying it.
	gate     sync.RWMutex
	degraded atomic.Bool

	unavailable func(error) bool
}

var _ Store = (*Tiered)(nil)

// NewTiered starts degraded when the fallback still holds unsynced writes.
func NewTiered(ctx context.Context, primary Mirror, fallback *SQLStore, log *zerolog.Logger) (*Tiered, error) {
	t := &Tiered{primary: primary, fallback: fallback, log: log, unavailable: Unavailable}
	n, err := fallback.JournalSize(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		log.Warn().Int("pending", n).Msg("Fallback store has unsynced writes, starting degraded")
		t.setDegraded(true)
	}
	return t, nil
}

type TierStatus struct {
	Degraded    bool `json:"degraded"`
	PendingSync int  `json:"pending_sync"`
}

func (t *Tiered) Status(ctx context.Context) (TierStatus, error) {
	n, err := t.fallback.JournalSize(ctx)
	if err != nil {
		return TierStatus{}, err
	}
	return TierStatus{Degraded: t.degraded.Load(), PendingSync: n}, nil
}

func (t *Tiered) setDegraded(v bool) {
	t.degraded.Store(v)
	if v {
		metrics.Degraded.Set(1)
	} else {
		metrics.Degraded.Set(0)
	}
}

func (t *Tiered) trip(op string, err error) {
	if !t.degraded.Swap(true) {
		t.log.Error().Err(err).Str("op", op).Msg("Primary store unavailable, switching to fallback")
		metrics.Degraded.Set(1)
	}
}

func (t *Tiered) mirrorFailed(op string, err error) {
	if err != nil && !errors.Is(err, ErrNotFound) {
		t.log.Warn().Err(err).Str("op", op).Msg("Failed to mirror into fallback store")
	}
}

// outage reports whether err should switch the store to the fallback. A
// request whose own context ended says nothing about the primary.
func (t *Tiered) outage(ctx context.Context, err error) bool {
	return ctx.Err() == nil && t.unavailable(err)
}

func read[T any](ctx context.Context, t *Tiered, op string, fn func(Store) (T, error), mirror func(T)) (T, error) {
	t.gate.RLock()
	defer t.gate.RUnlock()

	if !t.degraded.Load() {
		v, err := fn(t.primary)
		if err == nil {
			mirror(v)
			return v, nil
		}
		if !t.outage(ctx, err) {
			return v, err
		}
		t.trip(op, err)
	}
	metrics.FallbackOps.WithLabelValues(op).Inc()
	return fn(t.fallback)
}

func (t *Tiered) write(ctx context.Context, op string, entry JournalEntry, fn func(Store) error, mirror func()) error {
	t.gate.RLock()
	defer t.gate.RUnlock()

	if !t.degraded.Load() {
		err := fn(t.primary)
		if err == nil {
			mirror()
			return nil
		}
		if !t.outage(ctx, err) {
			return err
		}
		t.trip(op, err)
	}
	metrics.FallbackOps.WithLabelValues(op).Inc()
	return t.fallback.Journaled(ctx, entry, func(s *SQLStore) error { return fn(s) })
}

func (t *Tiered) Ping(ctx context.Context) error {
	if err := t.primary.Ping(ctx); err == nil {
		return nil
	}
	return t.fallback.Ping(ctx)
}

func (t *Tiered) ListPlatforms(ctx context.Context, tenantID string) ([]model.Platform, error) {
	return read(ctx, t, "list_platforms",
		func(s Store) ([]model.Platform, error) { return s.ListPlatforms(ctx, tenantID) },
		func(ps []model.Platform) {
			for _, p := range ps {
				t.mirrorFailed("list_platforms", t.fallback.PutPlatform(ctx, p))
			}
		})
}

func (t *Tiered) GetPlatform(ctx context.Context, tenantID, id string) (*model.Platform, error) {
	return read(ctx, t, "get_platform",
		func(s Store) (*model.Platform, error) { return s.GetPlatform(ctx, tenantID, id) },
		func(p *model.Platform) { t.mirrorFailed("get_platform", t.fallback.PutPlatform(ctx, *p)) })
}

func (t *Tiered) InsertPlatform(ctx context.Context, p *model.Platform) error {
	return t.write(ctx, "insert_platform", platformEntry(p.TenantID, p.ID),
		func(s Store) error { return s.InsertPlatform(ctx, p) },
		func() { t.mirrorFailed("insert_platform", t.fallback.PutPlatform(ctx, *p)) })
}

func (t *Tiered) UpdatePlatform(ctx context.Context, p *model.Platform) error {
	return t.write(ctx, "update_platform", platformEntry(p.TenantID, p.ID),
		func(s Store) error { return s.UpdatePlatform(ctx, p) },
		func() { t.mirrorFailed("update_platform", t.fallback.PutPlatform(ctx, *p)) })
}

func (t *Tiered) DeletePlatform(ctx context.Context, tenantID, id string) error {
	return t.write(ctx, "delete_platform", platformEntry(tenantID, id),
		func(s Store) error { return s.DeletePlatform(ctx, tenantID, id) },
		func() { t.mirrorFailed("delete_platform", t.fallback.DeletePlatform(ctx, tenantID, id)) })
}

func (t *Tiered) IncrementKeyCount(ctx context.Context, tenantID, platformID string) error {
	return t.write(ctx, "increment_key_count", platformEntry(tenantID, platformID),
		func(s Store) error { return s.IncrementKeyCount(ctx, tenantID, platformID) },
		func() { t.refreshPlatform(ctx, tenantID, platformID) })
}

func (t *Tiered) DecrementKeyCount(ctx context.Context, tenantID, platformID string) error {
	return t.write(ctx, "decrement_key_count", platformEntry(tenantID, platformID),
		func(s Store) error { return s.DecrementKeyCount(ctx, tenantID, platformID) },
		func() { t.refreshPlatform(ctx, tenantID, platformID) })
}

// refreshPlatform copies the primary's counter into the fallback.
func (t *Tiered) refreshPlatform(ctx context.Context, tenantID, id string) {
	p, err := t.primary.GetPlatform(ctx, tenantID, id)
	if err != nil {
		t.mirrorFailed("refresh_platform", err)
		return
	}
	t.mirrorFailed("refresh_platform", t.fallback.PutPlatform(ctx, *p))
}

func (t *Tiered) ListKeys(ctx context.Context, tenantID string, f KeyFilter) ([]model.APIKey, error) {
	return read(ctx, t, "list_keys",
		func(s Store) ([]model.APIKey, error) { return s.ListKeys(ctx, tenantID, f) },
		func(ks []model.APIKey) {
			for _, k := range ks {
				t.mirrorFailed("list_keys", t.fallback.PutKey(ctx, k))
			}
		})
}

func (t *Tiered) GetKey(ctx context.Context, tenantID, id string) (*model.APIKey, error) {
	return read(ctx, t, "get_key",
		func(s Store) (*model.APIKey, error) { return s.GetKey(ctx, tenantID, id) },
		func(k *model.APIKey) { t.mirrorFailed("get_key", t.fallback.PutKey(ctx, *k)) })
}

func (t *Tiered) InsertKey(ctx context.Context, k *model.APIKey) error {
	return t.write(ctx, "insert_key", keyEntry(k.TenantID, k.ID),
		func(s Store) error { return s.InsertKey(ctx, k) },
		func() { t.mirrorFailed("insert_key", t.fallback.PutKey(ctx, *k)) })
}

func (t *Tiered) UpdateKey(ctx context.Context, k *model.APIKey) error {
	return t.write(ctx, "update_key", keyEntry(k.TenantID, k.ID),
		func(s Store) error { return s.UpdateKey(ctx, k) },
		func() { t.mirrorFailed("update_key", t.fallback.PutKey(ctx, *k)) })
}

func (t *Tiered) DeleteKey(ctx context.Context, tenantID, id string) error {
	return t.write(ctx, "delete_key", keyEntry(tenantID, id),
		func(s Store) error { return s.DeleteKey(ctx, tenantID, id) },
		func() { t.mirrorFailed("delete_key", t.fallback.DeleteKey(ctx, tenantID, id)) })
}

func (t *Tiered) ListWorkflows(ctx context.Context, tenantID string, f WorkflowFilter) ([]model.Workflow, error) {
	return read(ctx, t, "list_workflows",
		func(s Store) ([]model.Workflow, error) { return s.ListWorkflows(ctx, tenantID, f) },
		func(wfs []model.Workflow) {
			for _, wf := range wfs {
				t.mirrorFailed("list_workflows", t.fallback.PutWorkflow(ctx, wf))
			}
		})
}

func (t *Tiered) GetWorkflow(ctx context.Context, tenantID, id string) (*model.Workflow, error) {
	return read(ctx, t, "get_workflow",
		func(s Store) (*model.Workflow, error) { return s.GetWorkflow(ctx, tenantID, id) },
		func(wf *model.Workflow) { t.mirrorFailed("get_workflow", t.fallback.PutWorkflow(ctx, *wf)) })
}

func (t *Tiered) InsertWorkflow(ctx context.Context, wf *model.Workflow) error {
	return t.write(ctx, "insert_workflow", workflowEntry(wf.TenantID, wf.ID),
		func(s Store) error { return s.InsertWorkflow(ctx, wf) },
		func() { t.mirrorFailed("insert_workflow", t.fallback.PutWorkflow(ctx, *wf)) })
}

func (t *Tiered) UpdateWorkflow(ctx context.Context, wf *model.Workflow) error {
	return t.write(ctx, "update_workflow", workflowEntry(wf.TenantID, wf.ID),
		func(s Store) error { return s.UpdateWorkflow(ctx, wf) },
		func() { t.mirrorFailed("update_workflow", t.fallback.PutWorkflow(ctx, *wf)) })
}

func (t *Tiered) DeleteWorkflow(ctx context.Context, tenantID, id string) error {
	return t.write(ctx, "delete_workflow", workflowEntry(tenantID, id),
		func(s Store) error { return s.DeleteWorkflow(ctx, tenantID, id) },
		func() { t.mirrorFailed("delete_workflow", t.fallback.DeleteWorkflow(ctx, tenantID, id)) })
}

func (t *Tiered) InsertActivity(ctx context.Context, a *model.Activity) error {
	return t.write(ctx, "insert_activity", JournalEntry{Entity: EntityActivity, TenantID: a.TenantID, EntityID: a.ID},
		func(s Store) error { return s.InsertActivity(ctx, a) },
		func() { t.mirrorFailed("insert_activity", t.fallback.InsertActivity(ctx, a)) })
}

func (t *Tiered) ListActivities(ctx context.Context, tenantID string, limit int) ([]model.Activity, error) {
	return read(ctx, t, "list_activities",
		func(s Store) ([]model.Activity, error) { return s.ListActivities(ctx, tenantID, limit) },
		func(as []model.Activity) {
			for i := range as {
				t.mirrorFailed("list_activities", t.fallback.InsertActivity(ctx, &as[i]))
			}
		})
}

func platformEntry(tenantID, id string) JournalEntry {
	return JournalEntry{Entity: EntityPlatform, TenantID: tenantID, EntityID: id}
}

func keyEntry(tenantID, id string) JournalEntry {
	return JournalEntry{Entity: EntityKey, TenantID: tenantID, EntityID: id}
}

func workflowEntry(tenantID, id string) JournalEntry {
	return JournalEntry{Entity: EntityWorkflow, TenantID: tenantID, EntityID: id}
}

// Sync replays the journal into the primary, oldest entry first, and
// leaves degraded mode once it is empty. It stops at the first failure;
// the failed entry and everything after it stay journaled.
func (t *Tiered) Sync(ctx context.Context) (int, error) {
	t.gate.Lock()
	defer t.gate.Unlock()

	if err := t.primary.Ping(ctx); err != nil {
		return 0, fmt.Errorf("primary store unreachable: %w", err)
	}

	replayed := 0
	for {
		entries, err := t.fallback.Journal(ctx, syncBatch)
		if err != nil {
			return replayed, err
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			if err := t.replay(ctx, e); err != nil {
				metrics.SyncFailures.Inc()
				return replayed, fmt.Errorf("replaying %s %s: %w", e.Entity, e.EntityID, err)
			}
			if err := t.fallback.DropJournal(ctx, e.Seq); err != nil {
				return replayed, err
			}
			replayed++
			metrics.SyncReplayed.Inc()
		}
	}

	if t.degraded.Load() {
		t.log.Info().Int("replayed", replayed).Msg("Primary store back, leaving fallback mode")
	}
	t.setDegraded(false)
	return replayed, nil
}

// replay makes the primary's copy of a row match the fallback's.
func (t *Tiered) replay(ctx context.Context, e JournalEntry) error {
	switch e.Entity {
	case EntityPlatform:
		p, err := t.fallback.GetPlatform(ctx, e.TenantID, e.EntityID)
		if errors.Is(err, ErrNotFound) {
			return ignoreNotFound(t.primary.DeletePlatform(ctx, e.TenantID, e.EntityID))
		}
		if err != nil {
			return err
		}
		return t.primary.PutPlatform(ctx, *p)
	case EntityKey:
		k, err := t.fallback.GetKey(ctx, e.TenantID, e.EntityID)
		if errors.Is(err, ErrNotFound) {
			return ignoreNotFound(t.primary.DeleteKey(ctx, e.TenantID, e.EntityID))
		}
		if err != nil {
			return err
		}
		return t.primary.PutKey(ctx, *k)
	case EntityWorkflow:
		wf, err := t.fallback.GetWorkflow(ctx, e.TenantID, e.EntityID)
		if errors.Is(err, ErrNotFound) {
			return ignoreNotFound(t.primary.DeleteWorkflow(ctx, e.TenantID, e.EntityID))
		}
		if err != nil {
			return err
		}
		return t.primary.PutWorkflow(ctx, *wf)
	case EntityActivity:
		a, err := t.fallback.GetActivity(ctx, e.TenantID, e.EntityID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return t.primary.InsertActivity(ctx, a)
	default:
		t.log.Warn().Str("entity", string(e.Entity)).Int64("seq", e.Seq).Msg("Dropping journal entry of unknown entity")
		return nil
	}
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
