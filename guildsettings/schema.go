package guildsettings

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS guild_configs (
	guild_id BIGINT PRIMARY KEY,

	prefix TEXT NOT NULL,
	giveaway_role_id BIGINT NOT NULL
);
`}
