package customcommands

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS custom_commands (
	guild_id BIGINT NOT NULL,
	local_id BIGINT NOT NULL,

	name TEXT NOT NULL,
	response TEXT NOT NULL,

	required_permissions BIGINT NOT NULL,

	roles BIGINT[] NOT NULL,
	roles_whitelist_mode BOOLEAN NOT NULL,

	channels BIGINT[] NOT NULL,
	channels_whitelist_mode BOOLEAN NOT NULL,

	users BIGINT[] NOT NULL,
	users_whitelist_mode BOOLEAN NOT NULL,

	PRIMARY KEY(guild_id, local_id)
);
`, `
CREATE INDEX IF NOT EXISTS custom_commands_name_idx ON custom_commands(guild_id, name);
`}
