package giveaway

import (
	"context"
	"database/sql"
	"time"

	"github.com/jonas747/engage/common"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// PostgresStore implements Store on top of common.PQ
type PostgresStore struct{}

func NewPostgresStore() *PostgresStore {
	return &PostgresStore{}
}

const giveawayColumns = `timer_id, guild_id, channel_id, message_id, host_id,
prize, num_winners, level_requirement, roles_requirement, created_at, ends_at`

func (p *PostgresStore) Insert(ctx context.Context, g *Giveaway) error {
	roles := g.RolesRequirement
	if roles == nil {
		roles = []int64{}
	}

	_, err := common.PQ.ExecContext(ctx, `INSERT INTO giveaways (`+giveawayColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		g.ID, g.GuildID, g.ChannelID, g.MessageID, g.HostID,
		g.Prize, g.NumWinners, g.LevelRequirement, pq.Array(roles), g.CreatedAt, g.EndsAt)

	return errors.Wrap(err, "insert giveaway")
}

func scanGiveaway(row interface{ Scan(...interface{}) error }) (*Giveaway, error) {
	g := &Giveaway{}
	err := row.Scan(&g.ID, &g.GuildID, &g.ChannelID, &g.MessageID, &g.HostID,
		&g.Prize, &g.NumWinners, &g.LevelRequirement, pq.Array(&g.RolesRequirement),
		&g.CreatedAt, &g.EndsAt)
	return g, err
}

func (p *PostgresStore) Get(ctx context.Context, id int64) (*Giveaway, error) {
	row := common.PQ.QueryRowContext(ctx, `SELECT `+giveawayColumns+` FROM giveaways WHERE timer_id = $1`, id)

	g, err := scanGiveaway(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, common.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan giveaway")
	}

	return g, nil
}

func (p *PostgresStore) ListActive(ctx context.Context, guildID int64) ([]*Giveaway, error) {
	rows, err := common.PQ.QueryContext(ctx, `SELECT `+giveawayColumns+` FROM giveaways
WHERE guild_id = $1 ORDER BY ends_at ASC`, guildID)
	if err != nil {
		return nil, errors.Wrap(err, "query active giveaways")
	}
	defer rows.Close()

	var result []*Giveaway
	for rows.Next() {
		g, err := scanGiveaway(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan giveaway row")
		}

		result = append(result, g)
	}

	return result, rows.Err()
}

func (p *PostgresStore) AddEntrant(ctx context.Context, giveawayID, userID int64) error {
	_, err := common.PQ.ExecContext(ctx, `INSERT INTO giveaway_entrants (giveaway_id, user_id, entered_at)
VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, giveawayID, userID, time.Now())

	return errors.Wrap(err, "insert entrant")
}

func (p *PostgresStore) RemoveEntrant(ctx context.Context, giveawayID, userID int64) error {
	_, err := common.PQ.ExecContext(ctx, `DELETE FROM giveaway_entrants WHERE giveaway_id = $1 AND user_id = $2`,
		giveawayID, userID)

	return errors.Wrap(err, "delete entrant")
}

func (p *PostgresStore) CountEntrants(ctx context.Context, giveawayID int64) (int, error) {
	var count int
	err := common.PQ.QueryRowContext(ctx, `SELECT COUNT(*) FROM giveaway_entrants WHERE giveaway_id = $1`,
		giveawayID).Scan(&count)

	return count, errors.Wrap(err, "count entrants")
}

// Claim reads the entrant list and deletes the giveaway in one transaction,
// the cascade removes the entrants with it
func (p *PostgresStore) Claim(ctx context.Context, id int64) (*Giveaway, []int64, error) {
	tx, err := common.PQ.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "begin claim")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+giveawayColumns+` FROM giveaways WHERE timer_id = $1 FOR UPDATE`, id)
	g, err := scanGiveaway(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, common.ErrNotFound
		}
		return nil, nil, errors.Wrap(err, "lock giveaway")
	}

	rows, err := tx.QueryContext(ctx, `SELECT user_id FROM giveaway_entrants WHERE giveaway_id = $1`, id)
	if err != nil {
		return nil, nil, errors.Wrap(err, "query entrants")
	}

	var entrants []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			rows.Close()
			return nil, nil, errors.Wrap(err, "scan entrant")
		}

		entrants = append(entrants, userID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "entrant rows")
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM giveaways WHERE timer_id = $1`, id)
	if err != nil {
		return nil, nil, errors.Wrap(err, "delete giveaway")
	}

	err = tx.Commit()
	if err != nil {
		return nil, nil, errors.Wrap(err, "commit claim")
	}

	return g, entrants, nil
}
