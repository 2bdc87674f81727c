package repository

import (
	"context"
	"errors"

	"github.com/valu/keyrotation/internal/model"
)

var ErrNotFound = errors.New("record not found")

// Store is the record store the dashboard runs on. Every call is scoped
// by tenant id; rows of other tenants are invisible.
type Store interface {
	Ping(ctx context.Context) error

	ListPlatforms(ctx context.Context, tenantID string) ([]model.Platform, error)
	GetPlatform(ctx context.Context, tenantID, id string) (*model.Platform, error)
	InsertPlatform(ctx context.Context, p *model.Platform) error
	UpdatePlatform(ctx context.Context, p *model.Platform) error
	// DeletePlatform removes the platform together with its keys.
	DeletePlatform(ctx context.Context, tenantID, id string) error
	IncrementKeyCount(ctx context.Context, tenantID, platformID string) error
	DecrementKeyCount(ctx context.Context, tenantID, platformID string) error

	ListKeys(ctx context.Context, tenantID string, f KeyFilter) ([]model.APIKey, error)
	GetKey(ctx context.Context, tenantID, id string) (*model.APIKey, error)
	InsertKey(ctx context.Context, k *model.APIKey) error
	UpdateKey(ctx context.Context, k *model.APIKey) error
	DeleteKey(ctx context.Context, tenantID, id string) error

	// Workflows are always read and written together with their steps.
	ListWorkflows(ctx context.Context, tenantID string, f WorkflowFilter) ([]model.Workflow, error)
	GetWorkflow(ctx context.Context, tenantID, id string) (*model.Workflow, error)
	InsertWorkflow(ctx context.Context, wf *model.Workflow) error
	UpdateWorkflow(ctx context.Context, wf *model.Workflow) error
	DeleteWorkflow(ctx context.Context, tenantID, id string) error

	// InsertActivity ignores an activity whose id is already stored.
	InsertActivity(ctx context.Context, a *model.Activity) error
	ListActivities(ctx context.Context, tenantID string, limit int) ([]model.Activity, error)
}

// Mirror is a Store that can also take a row's full state, inserting or
// overwriting it. The two-tier store needs this to copy rows between
// tiers.
type Mirror interface {
	Store
	PutPlatform(ctx context.Context, p model.Platform) error
	PutKey(ctx context.Context, k model.APIKey) error
	PutWorkflow(ctx context.Context, wf model.Workflow) error
}

// KeyFilter narrows ListKeys by equality. Empty fields match everything.
type KeyFilter struct {
	PlatformID string
}

type WorkflowFilter struct {
	KeyID  string
	Status model.WorkflowStatus
}
