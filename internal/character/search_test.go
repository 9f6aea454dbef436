package character

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRankCandidates(t *testing.T) {
	cands := []TitleCandidate{
		{ID: 1, Romaji: "Fullmetal Alchemist: Brotherhood"},
		{ID: 2, Romaji: "Hagane no Renkinjutsushi", English: "Fullmetal Alchemist"},
		{ID: 3, Romaji: "Gintama"},
	}

	got := RankCandidates("fullmetal alchemist", cands)
	if got[0].ID != 2 {
		t.Fatalf("expected English exact title first, got %+v", got)
	}
	if got[len(got)-1].ID != 3 {
		t.Fatalf("expected unrelated title last, got %+v", got)
	}
}

func TestRankCandidatesEmptyQueryKeepsOrder(t *testing.T) {
	cands := []TitleCandidate{{ID: 5}, {ID: 6}}
	got := RankCandidates("?!", cands)
	if got[0].ID != 5 || got[1].ID != 6 {
		t.Fatalf("order changed: %+v", got)
	}
}

func TestTypeaheadLatestQueryWins(t *testing.T) {
	started := make(chan string, 2)
	release := make(chan struct{})

	ta := NewTypeahead(func(ctx context.Context, q string) ([]TitleCandidate, error) {
		started <- q
		if q == "nar" {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-release:
			}
		}
		return []TitleCandidate{{Romaji: q}}, nil
	})

	type result struct {
		cands []TitleCandidate
		err   error
	}
	first := make(chan result, 1)
	go func() {
		c, err := ta.Search(context.Background(), "nar")
		first <- result{c, err}
	}()
	<-started

	cands, err := ta.Search(context.Background(), "naruto")
	if err != nil {
		t.Fatalf("latest search failed: %v", err)
	}
	if len(cands) != 1 || cands[0].Romaji != "naruto" {
		t.Fatalf("unexpected latest results: %+v", cands)
	}

	select {
	case r := <-first:
		if !errors.Is(r.err, ErrSuperseded) {
			t.Fatalf("expected first search to be superseded, got %v", r.err)
		}
	case <-time.After(time.Second):
		close(release)
		t.Fatal("first search was not cancelled")
	}
}

func TestTypeaheadShortQuery(t *testing.T) {
	called := false
	ta := NewTypeahead(func(ctx context.Context, q string) ([]TitleCandidate, error) {
		called = true
		return nil, nil
	})
	if got, err := ta.Search(context.Background(), "n"); got != nil || err != nil || called {
		t.Fatalf("single-character query should not search: %v %v called=%v", got, err, called)
	}
}
