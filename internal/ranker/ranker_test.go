package ranker

import (
	"context"
	"path/filepath"
	"testing"

	"mspro-labs/tender-pricer/internal/db"
	"mspro-labs/tender-pricer/internal/models"
)

// fakeEmbedder maps texts to fixed vectors and counts what it was asked.
type fakeEmbedder struct {
	vectors map[string][]float32
	asked   []string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.asked = append(f.asked, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

func listings(titles ...string) []models.Listing {
	out := make([]models.Listing, len(titles))
	for i, t := range titles {
		out[i] = models.Listing{Title: t, URL: "https://example.com/" + t}
	}
	return out
}

func TestFilter(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"насос":            {1, 0, 0},
		"Насос Grundfos":   {0.9, 0.1, 0},
		"Чехол для насоса": {0.2, 1, 0},
		"Насос Wilo":       {1, 0.05, 0},
	}}
	r := &Ranker{Embedder: emb, MinScore: 0.8}

	got, err := r.Filter(context.Background(), "насос", listings("Насос Grundfos", "Чехол для насоса", "Насос Wilo"))
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 listings, got %d: %+v", len(got), got)
	}
	if got[0].Title != "Насос Grundfos" || got[1].Title != "Насос Wilo" {
		t.Errorf("Original order not kept: %+v", got)
	}
}

func TestFilterNeverDropsAll(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"насос": {1, 0, 0},
		"A":     {0, 1, 0},
		"B":     {0.3, 1, 0},
	}}
	r := &Ranker{Embedder: emb, MinScore: 0.99}

	got, err := r.Filter(context.Background(), "насос", listings("A", "B"))
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "B" {
		t.Errorf("Expected the best listing B, got %+v", got)
	}
}

func TestFilterSingleListingSkipsEmbedding(t *testing.T) {
	emb := &fakeEmbedder{}
	r := &Ranker{Embedder: emb, MinScore: 0.5}
	got, err := r.Filter(context.Background(), "насос", listings("A"))
	if err != nil || len(got) != 1 {
		t.Fatalf("Filter = %v, %v", got, err)
	}
	if len(emb.asked) != 0 {
		t.Errorf("Embedder called for a single listing: %v", emb.asked)
	}
}

func TestVectorsCacheAside(t *testing.T) {
	database, err := db.Connect(filepath.Join(t.TempDir(), "rank.db"))
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer database.Close()

	emb := &fakeEmbedder{vectors: map[string][]float32{"насос": {1, 0, 0}, "A": {1, 0, 0}}}
	r := &Ranker{DB: database, Embedder: emb}

	if _, err := r.Score(context.Background(), "насос", listings("A")); err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if len(emb.asked) != 2 {
		t.Fatalf("Expected 2 texts embedded, got %v", emb.asked)
	}

	scored, err := r.Score(context.Background(), "насос", listings("A", "B"))
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if len(emb.asked) != 3 || emb.asked[2] != "B" {
		t.Errorf("Expected only B to be embedded on second call, got %v", emb.asked)
	}
	if scored[0].Listing.Title != "A" || scored[0].Score < 0.99 {
		t.Errorf("Unexpected ranking: %+v", scored)
	}
}
