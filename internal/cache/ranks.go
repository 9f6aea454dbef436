package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/anime-guess/internal/game"
	"github.com/anime-guess/internal/storage"
)

// ErrMiss is returned when a player has no cached rank
var ErrMiss = errors.New("rank not cached")

const keyPrefix = "leaderboard:"

// keyFor returns the sorted set for a difficulty; "" is the global set
func keyFor(difficulty string) string {
	if difficulty == "" {
		return keyPrefix + "all"
	}
	return keyPrefix + difficulty
}

// rankKeys lists every sorted set the cache writes
func rankKeys() []string {
	keys := []string{keyFor("")}
	for _, d := range game.Difficulties {
		keys = append(keys, keyFor(string(d)))
	}
	return keys
}

// scoreAbove is the exclusive ZCOUNT lower bound for scores beating score
func scoreAbove(score float64) string {
	return "(" + strconv.FormatFloat(score, 'f', -1, 64)
}

// Record raises a player's cached score in the global and difficulty sets.
// Scores only ever go up, matching a player's best entry.
func (c *RankCache) Record(ctx context.Context, userID, difficulty string, streak, points int) error {
	if !c.Enabled() {
		return ErrDisabled
	}

	member := redis.Z{Score: storage.CompositeScore(streak, points), Member: userID}
	pipe := c.rdb.Pipeline()
	pipe.ZAddArgs(ctx, keyFor(""), redis.ZAddArgs{GT: true, Members: []redis.Z{member}})
	if difficulty != "" {
		pipe.ZAddArgs(ctx, keyFor(difficulty), redis.ZAddArgs{GT: true, Members: []redis.Z{member}})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record score: %w", err)
	}
	return nil
}

// Rank returns the 1-based rank of a player. Tied players share a rank:
// one more than the number of players with a strictly higher score.
func (c *RankCache) Rank(ctx context.Context, userID, difficulty string) (int, error) {
	if !c.Enabled() {
		return 0, ErrDisabled
	}

	key := keyFor(difficulty)
	score, err := c.rdb.ZScore(ctx, key, userID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrMiss
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get score: %w", err)
	}

	above, err := c.rdb.ZCount(ctx, key, scoreAbove(score), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get rank: %w", err)
	}
	return int(above) + 1, nil
}

// Rebuild replaces every cached ranking with the best entry per player
func (c *RankCache) Rebuild(ctx context.Context, entries []storage.LeaderboardEntry) error {
	if !c.Enabled() {
		return ErrDisabled
	}

	best := make(map[string]map[string]float64)
	add := func(key, userID string, score float64) {
		if best[key] == nil {
			best[key] = make(map[string]float64)
		}
		if cur, ok := best[key][userID]; !ok || score > cur {
			best[key][userID] = score
		}
	}
	for _, e := range entries {
		score := storage.CompositeScore(e.Streak, e.Points)
		add(keyFor(""), e.UserID, score)
		add(keyFor(e.Difficulty), e.UserID, score)
	}

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, rankKeys()...)
	for key, scores := range best {
		members := make([]redis.Z, 0, len(scores))
		for userID, score := range scores {
			members = append(members, redis.Z{Score: score, Member: userID})
		}
		pipe.ZAdd(ctx, key, members...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to rebuild rankings: %w", err)
	}
	return nil
}
