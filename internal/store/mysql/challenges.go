package mysql

import (
	"context"
	"fmt"

	"supportconsole/internal/store"

	"github.com/google/uuid"
)

const challengeColumns = `BIN_TO_UUID(challenge_uuid) AS challenge_uuid, name, description,
	type, price, initial_coins_amount, published`

func (s *Store) GetPublishedChallenges(ctx context.Context) ([]store.Challenge, error) {
	var challenges []store.Challenge
	err := s.db.SelectContext(ctx, &challenges,
		"SELECT "+challengeColumns+" FROM challenge WHERE published = 1 ORDER BY type, price")
	if err != nil {
		return nil, fmt.Errorf("failed to list published challenges: %w", err)
	}
	return challenges, nil
}

func (s *Store) GetChallengeByUUID(ctx context.Context, id uuid.UUID) (*store.Challenge, error) {
	var c store.Challenge
	err := s.get(ctx, &c,
		"SELECT "+challengeColumns+" FROM challenge WHERE challenge_uuid = UUID_TO_BIN(?)", id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge %s: %w", id, err)
	}
	return &c, nil
}

// GetChallengeRules returns the rules of every phase of a challenge, ordered by phase.
func (s *Store) GetChallengeRules(ctx context.Context, challengeID uuid.UUID) ([]store.ChallengeRule, error) {
	var rules []store.ChallengeRule
	err := s.db.SelectContext(ctx, &rules, `
		SELECT BIN_TO_UUID(challenge_uuid) AS challenge_uuid, phase,
			max_daily_drawdown_percent, max_total_drawdown_percent,
			profit_target_percent, min_trading_days, phase_duration
		FROM challenge_rules
		WHERE challenge_uuid = UUID_TO_BIN(?)
		ORDER BY phase`, challengeID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get rules for challenge %s: %w", challengeID, err)
	}
	return rules, nil
}

func (s *Store) GetAllOptions(ctx context.Context) ([]store.Option, error) {
	var options []store.Option
	err := s.db.SelectContext(ctx, &options,
		"SELECT BIN_TO_UUID(option_uuid) AS option_uuid, name, majoration_percent FROM options ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list options: %w", err)
	}
	return options, nil
}
