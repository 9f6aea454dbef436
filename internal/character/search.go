package character

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/hbollon/go-edlib"
	"github.com/rs/zerolog/log"

	"github.com/anime-guess/internal/game"
)

// ErrSuperseded is returned to a search that a newer query replaced
var ErrSuperseded = errors.New("search superseded by a newer query")

// minSearchLength is the shortest query worth sending upstream
const minSearchLength = 2

// RankCandidates orders candidates by Jaro-Winkler similarity between the
// normalized query and the closer of their two titles. The sort is stable
// so upstream relevance breaks ties.
func RankCandidates(query string, candidates []TitleCandidate) []TitleCandidate {
	q := game.NormalizeTitle(query)
	if q == "" {
		return candidates
	}

	for i := range candidates {
		best := float32(0)
		for _, title := range []string{candidates[i].Romaji, candidates[i].English} {
			t := game.NormalizeTitle(title)
			if t == "" {
				continue
			}
			if sim := edlib.JaroWinklerSimilarity(q, t); sim > best {
				best = sim
			}
		}
		candidates[i].Similarity = best
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	return candidates
}

// SearchFunc looks up title candidates for a query
type SearchFunc func(ctx context.Context, query string) ([]TitleCandidate, error)

// Typeahead serializes search-as-you-type for one client: a new query
// cancels the one still in flight, and only the latest query returns
// results.
type Typeahead struct {
	search SearchFunc

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewTypeahead wraps a search function
func NewTypeahead(search SearchFunc) *Typeahead {
	return &Typeahead{search: search}
}

// Search runs query, cancelling any earlier search
func (t *Typeahead) Search(ctx context.Context, query string) ([]TitleCandidate, error) {
	ctx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.seq++
	seq := t.seq
	t.cancel = cancel
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		if t.seq == seq {
			t.cancel = nil
		}
		t.mu.Unlock()
		cancel()
	}()

	if len([]rune(query)) < minSearchLength {
		return nil, nil
	}

	results, err := t.search(ctx, query)

	t.mu.Lock()
	latest := t.seq == seq
	t.mu.Unlock()
	if !latest {
		return nil, ErrSuperseded
	}
	if err != nil {
		log.Debug().Err(err).Str("query", query).Msg("title search failed")
		return nil, err
	}
	return results, nil
}

// Close cancels any search in flight
func (t *Typeahead) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.seq++
}
