package services

import (
	"context"
	"strings"

	"icruise-backend/internal/models"
	"icruise-backend/internal/repository"
)

const (
	maxSearchResults = 3
	// Bound on fallback OR-clauses for pathologically long queries.
	maxSearchWords = 8
	minWordLength  = 3
)

type catalogStore interface {
	Search(ctx context.Context, f repository.CruiseFilter) ([]*models.Cruise, error)
}

// SearchService translates tool-call arguments into catalog reads.
type SearchService struct {
	catalog catalogStore
}

func NewSearchService(catalog catalogStore) *SearchService {
	return &SearchService{catalog: catalog}
}

// searchWords splits a free-text query into tokens worth matching on.
// One- and two-character fragments carry no signal and are dropped.
func searchWords(query string) []string {
	var words []string
	for _, w := range strings.Fields(query) {
		if len(w) < minWordLength {
			continue
		}
		words = append(words, w)
		if len(words) == maxSearchWords {
			break
		}
	}
	return words
}

// Search runs the full-phrase pass and, when it comes back empty, retries
// per word: the phrase may fail to match any single field even though its
// parts match across records. An empty result is valid, not an error.
func (s *SearchService) Search(ctx context.Context, args models.SearchArguments) ([]models.CruiseSummary, error) {
	query := strings.TrimSpace(args.Query)
	words := searchWords(query)

	filter := repository.CruiseFilter{
		Phrase:   query,
		Words:    words,
		MaxPrice: args.MaxPrice,
		Duration: strings.TrimSpace(args.Duration),
		Limit:    maxSearchResults,
	}

	cruises, err := s.catalog.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	if len(cruises) == 0 && len(words) > 0 {
		fallback := filter
		fallback.Phrase = ""
		cruises, err = s.catalog.Search(ctx, fallback)
		if err != nil {
			return nil, err
		}
	}

	summaries := make([]models.CruiseSummary, 0, len(cruises))
	for _, c := range cruises {
		summaries = append(summaries, c.Summary())
	}
	return summaries, nil
}
