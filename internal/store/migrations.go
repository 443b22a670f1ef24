package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	id          TEXT PRIMARY KEY,
	message_id  TEXT NOT NULL DEFAULT '',
	mailbox     TEXT NOT NULL DEFAULT '',
	uid         INTEGER NOT NULL DEFAULT 0,
	sender      TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL CHECK(source IN ('rule', 'classifier', 'none')),
	rule_name   TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL CHECK(status IN ('decided', 'rejected', 'failed', 'needs_body')),
	actions     TEXT NOT NULL DEFAULT '[]',
	reason      TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	dry_run     INTEGER NOT NULL DEFAULT 0 CHECK(dry_run IN (0, 1)),
	decided_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_decisions_status ON decisions(status);
CREATE INDEX IF NOT EXISTS idx_decisions_decided_at ON decisions(decided_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE decisions ADD COLUMN applied INTEGER NOT NULL DEFAULT 0;

CREATE INDEX IF NOT EXISTS idx_decisions_message
	ON decisions(mailbox, message_id, uid);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
