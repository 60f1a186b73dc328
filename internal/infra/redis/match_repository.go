package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"team-duel-service/internal/domain"
)

// MatchRepository stores matches in Redis: the match aggregate as a JSON
// string, its questions as a hash keyed by question ID, and an index set
// of active match IDs for the sweeper. SaveMatch runs under WATCH so the
// version check and the write are one optimistic transaction; losing the
// race surfaces as domain.ErrVersionConflict, same as the SQL store.
type MatchRepository struct {
	client *redis.Client
}

func NewMatchRepository(client *redis.Client) *MatchRepository {
	return &MatchRepository{client: client}
}

func (r *MatchRepository) CreateMatch(ctx context.Context, m domain.Match, questions []domain.Question) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal match: %w", err)
	}
	ok, err := r.client.SetNX(ctx, matchKey(m.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("store match: %w", err)
	}
	if !ok {
		return fmt.Errorf("match %s already exists", m.ID)
	}

	pipe := r.client.Pipeline()
	for _, q := range questions {
		qdata, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("marshal question: %w", err)
		}
		pipe.HSet(ctx, questionsKey(m.ID), q.ID, qdata)
	}
	pipe.SAdd(ctx, activeKey, m.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store questions: %w", err)
	}
	return nil
}

func (r *MatchRepository) LoadMatch(ctx context.Context, matchID string) (domain.Match, error) {
	raw, err := r.client.Get(ctx, matchKey(matchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	if err != nil {
		return domain.Match{}, fmt.Errorf("load match: %w", err)
	}
	var m domain.Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.Match{}, fmt.Errorf("unmarshal match: %w", err)
	}
	return m, nil
}

func (r *MatchRepository) SaveMatch(ctx context.Context, m domain.Match, expectedVersion int64) error {
	key := matchKey(m.ID)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrMatchNotFound
		}
		if err != nil {
			return err
		}
		var current domain.Match
		if err := json.Unmarshal(raw, &current); err != nil {
			return fmt.Errorf("unmarshal match: %w", err)
		}
		if current.Version != expectedVersion {
			return domain.ErrVersionConflict
		}

		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal match: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if m.Status == domain.MatchCompleted {
				pipe.SRem(ctx, activeKey, m.ID)
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.ErrVersionConflict
	}
	return err
}

func (r *MatchRepository) LoadQuestions(ctx context.Context, matchID string) ([]domain.Question, error) {
	fields, err := r.client.HGetAll(ctx, questionsKey(matchID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(fields) == 0 {
		exists, err := r.client.Exists(ctx, matchKey(matchID)).Result()
		if err != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}
		if exists == 0 {
			return nil, domain.ErrMatchNotFound
		}
		return nil, nil
	}
	out := make([]domain.Question, 0, len(fields))
	for _, raw := range fields {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		out = append(out, q)
	}
	return out, nil
}

func (r *MatchRepository) SaveQuestion(ctx context.Context, q domain.Question) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal question: %w", err)
	}
	if err := r.client.HSet(ctx, questionsKey(q.MatchID), q.ID, data).Err(); err != nil {
		return fmt.Errorf("save question: %w", err)
	}
	return nil
}

func (r *MatchRepository) ListActiveMatches(ctx context.Context) ([]domain.Match, error) {
	ids, err := r.client.SMembers(ctx, activeKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list active: %w", err)
	}
	out := make([]domain.Match, 0, len(ids))
	for _, id := range ids {
		m, err := r.LoadMatch(ctx, id)
		if errors.Is(err, domain.ErrMatchNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

const activeKey = "duel:active"

func matchKey(matchID string) string {
	return "duel:match:" + matchID
}

func questionsKey(matchID string) string {
	return "duel:match:" + matchID + ":questions"
}
