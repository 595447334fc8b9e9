package leveling

import (
	"context"
	"database/sql"

	"emperror.dev/errors"
	"github.com/jonas747/engage/common"
)

// RankCard holds the per user appearance settings for rendered rank cards,
// shared across all guilds the user is in. Colors are packed 0xRRGGBB ints.
type RankCard struct {
	UserID int64

	Font int

	PrimaryColor   int
	SecondaryColor int
	TertiaryColor  int

	BackgroundURL   string
	BackgroundColor int
	BackgroundAlpha float64
	BackgroundBlur  int

	OverlayColor        int
	OverlayAlpha        float64
	OverlayBorderRadius int

	AvatarBorderColor  int
	AvatarBorderAlpha  float64
	AvatarBorderRadius int

	ProgressBarColor int
	ProgressBarAlpha float64
}

func DefaultRankCard(userID int64) *RankCard {
	return &RankCard{
		UserID: userID,

		PrimaryColor:   0xffffff,
		SecondaryColor: 0xb0bec5,
		TertiaryColor:  0x808080,

		BackgroundColor: 0x1e1e1e,
		BackgroundAlpha: 1.0,

		OverlayAlpha:        0.5,
		OverlayBorderRadius: 40,

		AvatarBorderColor:  0xffffff,
		AvatarBorderAlpha:  1.0,
		AvatarBorderRadius: 40,

		ProgressBarColor: 0xffffff,
		ProgressBarAlpha: 1.0,
	}
}

func (r *RankCard) Validate() error {
	for _, check := range []struct {
		field string
		value int
	}{
		{"primary_color", r.PrimaryColor},
		{"secondary_color", r.SecondaryColor},
		{"tertiary_color", r.TertiaryColor},
		{"background_color", r.BackgroundColor},
		{"overlay_color", r.OverlayColor},
		{"avatar_border_color", r.AvatarBorderColor},
		{"progress_bar_color", r.ProgressBarColor},
	} {
		if check.value < 0 || check.value > 0xffffff {
			return common.NewValidationError(check.field, "outside the rgb range")
		}
	}

	for _, check := range []struct {
		field string
		value float64
	}{
		{"background_alpha", r.BackgroundAlpha},
		{"overlay_alpha", r.OverlayAlpha},
		{"avatar_border_alpha", r.AvatarBorderAlpha},
		{"progress_bar_alpha", r.ProgressBarAlpha},
	} {
		if check.value < 0 || check.value > 1 {
			return common.NewValidationError(check.field, "has to be between 0 and 1")
		}
	}

	if r.BackgroundBlur < 0 || r.BackgroundBlur > 20 {
		return common.NewValidationError("background_blur", "has to be between 0 and 20")
	}

	if r.OverlayBorderRadius < 0 || r.OverlayBorderRadius > 80 {
		return common.NewValidationError("overlay_border_radius", "has to be between 0 and 80")
	}

	if r.AvatarBorderRadius < 0 || r.AvatarBorderRadius > 80 {
		return common.NewValidationError("avatar_border_radius", "has to be between 0 and 80")
	}

	return nil
}

// GetRankCard returns the stored card for the user, defaults when none exists
func GetRankCard(ctx context.Context, userID int64) (*RankCard, error) {
	row := common.PQ.QueryRowContext(ctx, `SELECT font, primary_color, secondary_color, tertiary_color,
background_url, background_color, background_alpha, background_blur,
overlay_color, overlay_alpha, overlay_border_radius,
avatar_border_color, avatar_border_alpha, avatar_border_radius,
progress_bar_color, progress_bar_alpha
FROM rank_cards WHERE user_id = $1`, userID)

	card := &RankCard{UserID: userID}
	err := row.Scan(&card.Font, &card.PrimaryColor, &card.SecondaryColor, &card.TertiaryColor,
		&card.BackgroundURL, &card.BackgroundColor, &card.BackgroundAlpha, &card.BackgroundBlur,
		&card.OverlayColor, &card.OverlayAlpha, &card.OverlayBorderRadius,
		&card.AvatarBorderColor, &card.AvatarBorderAlpha, &card.AvatarBorderRadius,
		&card.ProgressBarColor, &card.ProgressBarAlpha)
	if err != nil {
		if err == sql.ErrNoRows {
			return DefaultRankCard(userID), nil
		}
		return nil, errors.WithMessage(err, "scan rank card")
	}

	return card, nil
}

// UpdateRankCard validates and persists the card
func UpdateRankCard(ctx context.Context, card *RankCard) error {
	err := card.Validate()
	if err != nil {
		return err
	}

	_, err = common.PQ.ExecContext(ctx, `INSERT INTO rank_cards
(user_id, font, primary_color, secondary_color, tertiary_color,
background_url, background_color, background_alpha, background_blur,
overlay_color, overlay_alpha, overlay_border_radius,
avatar_border_color, avatar_border_alpha, avatar_border_radius,
progress_bar_color, progress_bar_alpha)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (user_id) DO UPDATE SET
	font = $2, primary_color = $3, secondary_color = $4, tertiary_color = $5,
	background_url = $6, background_color = $7, background_alpha = $8, background_blur = $9,
	overlay_color = $10, overlay_alpha = $11, overlay_border_radius = $12,
	avatar_border_color = $13, avatar_border_alpha = $14, avatar_border_radius = $15,
	progress_bar_color = $16, progress_bar_alpha = $17`,
		card.UserID, card.Font, card.PrimaryColor, card.SecondaryColor, card.TertiaryColor,
		card.BackgroundURL, card.BackgroundColor, card.BackgroundAlpha, card.BackgroundBlur,
		card.OverlayColor, card.OverlayAlpha, card.OverlayBorderRadius,
		card.AvatarBorderColor, card.AvatarBorderAlpha, card.AvatarBorderRadius,
		card.ProgressBarColor, card.ProgressBarAlpha)

	return errors.WithMessage(err, "upsert rank card")
}
