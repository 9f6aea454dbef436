package character

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	DefaultEndpoint = "https://graphql.anilist.co"
	// DefaultMaxPage bounds the popularity pool random characters come from
	DefaultMaxPage = 500
)

var (
	// ErrNoAppearances is returned when the fetched character has no anime
	ErrNoAppearances = errors.New("character has no anime appearances")
	// ErrUpstream wraps failures reported by the character source
	ErrUpstream = errors.New("character source error")
)

const characterQuery = `query ($page: Int) {
  Page(page: $page, perPage: 1) {
    characters(sort: FAVOURITES_DESC) {
      id
      name { full native }
      image { large }
      media(type: ANIME, sort: START_DATE) {
        nodes { id format seasonYear title { romaji english } }
      }
    }
  }
}`

const searchQuery = `query ($search: String, $perPage: Int) {
  Page(page: 1, perPage: $perPage) {
    media(search: $search, type: ANIME, sort: SEARCH_MATCH) {
      id
      title { romaji english }
    }
  }
}`

// TitleCandidate is one typeahead suggestion
type TitleCandidate struct {
	ID         int     `json:"id"`
	Romaji     string  `json:"romaji"`
	English    string  `json:"english,omitempty"`
	Similarity float32 `json:"similarity"`
}

// AniListClient fetches characters and titles from the AniList GraphQL API
type AniListClient struct {
	endpoint string
	client   *http.Client
	maxPage  int
	pick     func(n int) int
}

// NewAniListClient creates a client. maxPage bounds the popularity pool
// random characters are drawn from.
func NewAniListClient(endpoint string, maxPage int) *AniListClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if maxPage <= 0 {
		maxPage = DefaultMaxPage
	}
	return &AniListClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		maxPage:  maxPage,
		pick:     rand.Intn,
	}
}

// FetchCharacter returns a random popular character. A character without
// anime appearances is retried exactly once.
func (c *AniListClient) FetchCharacter(ctx context.Context) (*Character, error) {
	ch, err := c.fetchOnce(ctx)
	if errors.Is(err, ErrNoAppearances) {
		log.Debug().Msg("character without appearances, retrying once")
		ch, err = c.fetchOnce(ctx)
	}
	return ch, err
}

func (c *AniListClient) fetchOnce(ctx context.Context) (*Character, error) {
	page := c.pick(c.maxPage) + 1
	data, err := c.post(ctx, characterQuery, map[string]any{"page": page})
	if err != nil {
		return nil, err
	}

	node := gjson.GetBytes(data, "data.Page.characters.0")
	if !node.Exists() {
		return nil, fmt.Errorf("%w: no character on page %d", ErrUpstream, page)
	}
	ch := parseCharacter(node)
	if len(ch.Appearances) == 0 {
		return nil, ErrNoAppearances
	}
	return ch, nil
}

func parseCharacter(node gjson.Result) *Character {
	ch := &Character{
		ID: int(node.Get("id").Int()),
		Name: Name{
			Full:   node.Get("name.full").String(),
			Native: node.Get("name.native").String(),
		},
		Image: node.Get("image.large").String(),
	}
	node.Get("media.nodes").ForEach(func(_, m gjson.Result) bool {
		a := Appearance{
			ID:      int(m.Get("id").Int()),
			Romaji:  m.Get("title.romaji").String(),
			English: m.Get("title.english").String(),
			Format:  m.Get("format").String(),
			Year:    int(m.Get("seasonYear").Int()),
		}
		if a.Romaji != "" || a.English != "" {
			ch.Appearances = append(ch.Appearances, a)
		}
		return true
	})
	return ch
}

// SearchTitles returns anime titles matching query, best matches first
func (c *AniListClient) SearchTitles(ctx context.Context, query string) ([]TitleCandidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	data, err := c.post(ctx, searchQuery, map[string]any{"search": query, "perPage": 10})
	if err != nil {
		return nil, err
	}

	var out []TitleCandidate
	gjson.GetBytes(data, "data.Page.media").ForEach(func(_, m gjson.Result) bool {
		out = append(out, TitleCandidate{
			ID:      int(m.Get("id").Int()),
			Romaji:  m.Get("title.romaji").String(),
			English: m.Get("title.english").String(),
		})
		return true
	})
	return RankCandidates(query, out), nil
}

// post sends a GraphQL request and returns the raw response body
func (c *AniListClient) post(ctx context.Context, query string, vars map[string]any) ([]byte, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "query", query)
	if err != nil {
		return nil, err
	}
	for k, v := range vars {
		if body, err = sjson.SetBytes(body, "variables."+k, v); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	if msg := gjson.GetBytes(data, "errors.0.message"); msg.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, msg.String())
	}
	return data, nil
}
