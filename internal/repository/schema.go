package repository

import "strings"

// Tables and columns are shared by both dialects; only the timestamp and
// journal sequence types differ.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS platforms (
	id               TEXT PRIMARY KEY,
	tenant_id        TEXT NOT NULL,
	name             TEXT NOT NULL,
	icon             TEXT NOT NULL DEFAULT '',
	color            TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	key_count        INTEGER NOT NULL DEFAULT 0,
	admin_permission TEXT NOT NULL DEFAULT '',
	last_sync        {{ts}} NOT NULL,
	rotation_policy  TEXT NOT NULL DEFAULT '',
	auto_discovery   TEXT NOT NULL,
	created_at       {{ts}} NOT NULL
);

CREATE TABLE IF NOT EXISTS api_keys (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	name           TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	platform_id    TEXT NOT NULL,
	platform_name  TEXT NOT NULL DEFAULT '',
	platform_icon  TEXT NOT NULL DEFAULT '',
	platform_color TEXT NOT NULL DEFAULT '',
	created_at     {{ts}} NOT NULL,
	last_used_at   {{ts}} NOT NULL,
	risk           TEXT NOT NULL,
	status         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rotation_workflows (
	id                   TEXT PRIMARY KEY,
	tenant_id            TEXT NOT NULL,
	name                 TEXT NOT NULL,
	subtitle             TEXT NOT NULL DEFAULT '',
	key_id               TEXT NOT NULL,
	current_step         INTEGER NOT NULL,
	total_steps          INTEGER NOT NULL,
	started_at           {{ts}} NOT NULL,
	estimated_completion {{ts}} NOT NULL,
	status               TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_steps (
	id           TEXT PRIMARY KEY,
	workflow_id  TEXT NOT NULL,
	tenant_id    TEXT NOT NULL,
	step_number  INTEGER NOT NULL,
	name         TEXT NOT NULL,
	status       TEXT NOT NULL,
	completed_at {{ts}},
	UNIQUE (workflow_id, step_number)
);

CREATE TABLE IF NOT EXISTS activities (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	type           TEXT NOT NULL,
	platform_name  TEXT NOT NULL DEFAULT '',
	platform_icon  TEXT NOT NULL DEFAULT '',
	platform_color TEXT NOT NULL DEFAULT '',
	key_name       TEXT NOT NULL DEFAULT '',
	workflow_name  TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT '',
	created_at     {{ts}} NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_journal (
	seq        {{seq}},
	entity     TEXT NOT NULL,
	tenant_id  TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	created_at {{ts}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_platforms_tenant ON platforms(tenant_id);
CREATE INDEX IF NOT EXISTS idx_api_keys_tenant ON api_keys(tenant_id, platform_id);
CREATE INDEX IF NOT EXISTS idx_workflows_tenant ON rotation_workflows(tenant_id, key_id);
CREATE INDEX IF NOT EXISTS idx_workflow_steps_workflow ON workflow_steps(workflow_id);
CREATE INDEX IF NOT EXISTS idx_activities_tenant ON activities(tenant_id, created_at);
`

func schemaFor(d Dialect) string {
	r := strings.NewReplacer(
		"{{ts}}", "TIMESTAMPTZ",
		"{{seq}}", "BIGSERIAL PRIMARY KEY",
	)
	if d == SQLite {
		r = strings.NewReplacer(
			"{{ts}}", "TIMESTAMP",
			"{{seq}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		)
	}
	return r.Replace(schemaTemplate)
}
