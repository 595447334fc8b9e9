package giveaway

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS giveaways (
	timer_id BIGINT PRIMARY KEY,

	guild_id BIGINT NOT NULL,
	channel_id BIGINT NOT NULL,
	message_id BIGINT NOT NULL,
	host_id BIGINT NOT NULL,

	prize TEXT NOT NULL,
	num_winners INT NOT NULL,

	level_requirement INT NOT NULL,
	roles_requirement BIGINT[] NOT NULL,

	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	ends_at TIMESTAMP WITH TIME ZONE NOT NULL
);
`, `
CREATE INDEX IF NOT EXISTS giveaways_guild_idx ON giveaways(guild_id);
`, `
CREATE TABLE IF NOT EXISTS giveaway_entrants (
	giveaway_id BIGINT NOT NULL REFERENCES giveaways(timer_id) ON DELETE CASCADE,
	user_id BIGINT NOT NULL,

	entered_at TIMESTAMP WITH TIME ZONE NOT NULL,

	PRIMARY KEY(giveaway_id, user_id)
);
`}
