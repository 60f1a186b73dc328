package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"team-duel-service/internal/domain"
)

// MatchStore is the durable app.MatchRepository. The version column
// carries the compare-and-set: SaveMatch updates conditioned on the
// expected version and reports domain.ErrVersionConflict when zero rows
// match, leaving the previous consistent state untouched.
type MatchStore struct {
	pool *pgxpool.Pool
}

func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

func (s *MatchStore) CreateMatch(ctx context.Context, m domain.Match, questions []domain.Question) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create match: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO matches
			(id, team_a, team_b, score_a, score_b, turn, status, winner,
			 reward_points, draw_points, time_limit_seconds, reward_paid,
			 version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		m.ID, m.TeamA, m.TeamB, m.ScoreA, m.ScoreB, string(m.Turn), string(m.Status),
		string(m.Winner), m.RewardPoints, m.DrawPoints, m.TimeLimitSeconds,
		m.RewardPaid, m.Version, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("marshal options: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO questions
				(id, match_id, assigned_team, order_index, prompt, options,
				 correct_option, answered)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			q.ID, q.MatchID, string(q.AssignedTeam), q.OrderIndex, q.Prompt,
			options, q.CorrectOption, q.Answered)
		if err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *MatchStore) LoadMatch(ctx context.Context, matchID string) (domain.Match, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, team_a, team_b, score_a, score_b, turn, status, winner,
		       reward_points, draw_points, time_limit_seconds, reward_paid,
		       version, created_at, updated_at
		FROM matches WHERE id=$1`, matchID)
	m, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	if err != nil {
		return domain.Match{}, fmt.Errorf("load match: %w", err)
	}
	return m, nil
}

func (s *MatchStore) SaveMatch(ctx context.Context, m domain.Match, expectedVersion int64) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE matches
		SET score_a=$2, score_b=$3, turn=$4, status=$5, winner=$6,
		    reward_paid=$7, version=$8, updated_at=$9
		WHERE id=$1 AND version=$10`,
		m.ID, m.ScoreA, m.ScoreB, string(m.Turn), string(m.Status),
		string(m.Winner), m.RewardPaid, m.Version, m.UpdatedAt, expectedVersion)
	if err != nil {
		return fmt.Errorf("save match: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func (s *MatchStore) LoadQuestions(ctx context.Context, matchID string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, match_id, assigned_team, order_index, prompt, options,
		       correct_option, answered
		FROM questions WHERE match_id=$1
		ORDER BY assigned_team, order_index`, matchID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var (
			q       domain.Question
			team    string
			options []byte
		)
		if err := rows.Scan(&q.ID, &q.MatchID, &team, &q.OrderIndex, &q.Prompt,
			&options, &q.CorrectOption, &q.Answered); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.AssignedTeam = domain.TeamSide(team)
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if out == nil {
		if _, err := s.LoadMatch(ctx, matchID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *MatchStore) SaveQuestion(ctx context.Context, q domain.Question) error {
	ct, err := s.pool.Exec(ctx, `UPDATE questions SET answered=$2 WHERE id=$1`,
		q.ID, q.Answered)
	if err != nil {
		return fmt.Errorf("save question: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (s *MatchStore) ListActiveMatches(ctx context.Context) ([]domain.Match, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, team_a, team_b, score_a, score_b, turn, status, winner,
		       reward_points, draw_points, time_limit_seconds, reward_paid,
		       version, created_at, updated_at
		FROM matches WHERE status=$1`, string(domain.MatchActive))
	if err != nil {
		return nil, fmt.Errorf("list active: %w", err)
	}
	defer rows.Close()

	var out []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMatch(row pgx.Row) (domain.Match, error) {
	var (
		m                    domain.Match
		turn, status, winner string
	)
	err := row.Scan(&m.ID, &m.TeamA, &m.TeamB, &m.ScoreA, &m.ScoreB, &turn,
		&status, &winner, &m.RewardPoints, &m.DrawPoints, &m.TimeLimitSeconds,
		&m.RewardPaid, &m.Version, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return domain.Match{}, err
	}
	m.Turn = domain.TeamSide(turn)
	m.Status = domain.MatchStatus(status)
	m.Winner = domain.Winner(winner)
	return m, nil
}
