package leveling

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS level_configs (
	guild_id BIGINT PRIMARY KEY,

	module_enabled BOOLEAN NOT NULL,
	role_stack BOOLEAN NOT NULL,

	base BIGINT NOT NULL,
	factor DOUBLE PRECISION NOT NULL,
	min_gain INT NOT NULL,
	max_gain INT NOT NULL,

	cooldown_rate INT NOT NULL,
	cooldown_per_seconds INT NOT NULL,

	level_up_message TEXT NOT NULL,
	level_up_message_overrides JSONB NOT NULL,
	level_up_channel BIGINT NOT NULL,

	blacklisted_roles BIGINT[] NOT NULL,
	blacklisted_channels BIGINT[] NOT NULL,
	blacklisted_users BIGINT[] NOT NULL,

	level_roles JSONB NOT NULL,
	multiplier_roles JSONB NOT NULL,
	multiplier_channels JSONB NOT NULL,

	reset_on_leave BOOLEAN NOT NULL
);
`, `
CREATE TABLE IF NOT EXISTS user_levels (
	guild_id BIGINT NOT NULL,
	user_id BIGINT NOT NULL,

	level INT NOT NULL,
	xp BIGINT NOT NULL,

	PRIMARY KEY(guild_id, user_id)
);
`, `
CREATE INDEX IF NOT EXISTS user_levels_guild_idx ON user_levels(guild_id);
`, `
CREATE TABLE IF NOT EXISTS rank_cards (
	user_id BIGINT PRIMARY KEY,

	font SMALLINT NOT NULL DEFAULT 0,

	primary_color INT NOT NULL DEFAULT 16777215,
	secondary_color INT NOT NULL DEFAULT 11583215,
	tertiary_color INT NOT NULL DEFAULT 8421504,

	background_url TEXT NOT NULL DEFAULT '',
	background_color INT NOT NULL DEFAULT 1973790,
	background_alpha DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	background_blur INT NOT NULL DEFAULT 0,

	overlay_color INT NOT NULL DEFAULT 0,
	overlay_alpha DOUBLE PRECISION NOT NULL DEFAULT 0.5,
	overlay_border_radius INT NOT NULL DEFAULT 40,

	avatar_border_color INT NOT NULL DEFAULT 16777215,
	avatar_border_alpha DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	avatar_border_radius INT NOT NULL DEFAULT 40,

	progress_bar_color INT NOT NULL DEFAULT 16777215,
	progress_bar_alpha DOUBLE PRECISION NOT NULL DEFAULT 1.0
);
`}
