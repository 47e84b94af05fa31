package ranker

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"

	"mspro-labs/tender-pricer/internal/ai"
	"mspro-labs/tender-pricer/internal/db"
	"mspro-labs/tender-pricer/internal/models"
)

// Embedder turns texts into vectors, one per text in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Scored is a listing with its similarity to the query.
type Scored struct {
	Listing models.Listing
	Score   float32
}

// Ranker drops marketplace snippets whose title is unlike the tender name.
type Ranker struct {
	DB       *sql.DB
	Embedder Embedder
	MinScore float32
}

// Score returns listings with their similarity to query, best first.
func (r *Ranker) Score(ctx context.Context, query string, listings []models.Listing) ([]Scored, error) {
	texts := make([]string, 0, len(listings)+1)
	texts = append(texts, query)
	for _, l := range listings {
		texts = append(texts, l.Title)
	}

	vectors, err := r.vectors(ctx, texts)
	if err != nil {
		return nil, err
	}

	results := make([]Scored, len(listings))
	for i, l := range listings {
		results[i] = Scored{Listing: l, Score: ai.CosineSimilarity(vectors[0], vectors[i+1])}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// Filter keeps the listings scoring at least MinScore, in their original
// order. When none qualify the single best listing is kept, so a lookup
// always has a candidate.
func (r *Ranker) Filter(ctx context.Context, query string, listings []models.Listing) ([]models.Listing, error) {
	if len(listings) < 2 {
		return listings, nil
	}
	scored, err := r.Score(ctx, query, listings)
	if err != nil {
		return nil, fmt.Errorf("failed to rank %d listings: %w", len(listings), err)
	}

	keep := make(map[string]bool)
	for _, s := range scored {
		if s.Score >= r.MinScore {
			keep[s.Listing.URL+"\x00"+s.Listing.Title] = true
		} else {
			log.Printf("Dropping %q (score %.2f < %.2f)", s.Listing.Title, s.Score, r.MinScore)
		}
	}
	if len(keep) == 0 {
		return []models.Listing{scored[0].Listing}, nil
	}

	var out []models.Listing
	for _, l := range listings {
		if keep[l.URL+"\x00"+l.Title] {
			out = append(out, l)
		}
	}
	return out, nil
}

// vectors handles the "cache-aside" logic: cached texts come from sqlite,
// the rest are embedded in one call and saved.
func (r *Ranker) vectors(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, t := range texts {
		if r.DB != nil {
			if blob, err := db.GetCachedEmbedding(r.DB, t); err == nil {
				if v, err := ai.BytesToFloats(blob); err == nil {
					out[i] = v
					continue
				}
			}
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	log.Printf("🤖 Cache miss for %d texts. Calling Gemini...", len(missing))
	fresh, err := r.Embedder.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missing))
	}

	for k, v := range fresh {
		out[missingIdx[k]] = v
		if r.DB == nil {
			continue
		}
		blob, err := ai.FloatsToBytes(v)
		if err != nil {
			continue
		}
		// don't fail the lookup if cache save fails
		if err := db.SaveCachedEmbedding(r.DB, missing[k], blob); err != nil {
			log.Printf("Warning: failed to save embedding to cache: %v", err)
		}
	}
	return out, nil
}
