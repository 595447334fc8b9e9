package triggers

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS triggers (
	guild_id BIGINT NOT NULL,
	local_id BIGINT NOT NULL,

	-- 0 = exact phrase, 1 = regex pattern
	kind SMALLINT NOT NULL,
	phrase TEXT NOT NULL,
	response TEXT NOT NULL,

	case_sensitive BOOLEAN NOT NULL,

	PRIMARY KEY(guild_id, local_id)
);
`, `
CREATE INDEX IF NOT EXISTS triggers_guild_idx ON triggers(guild_id);
`}
