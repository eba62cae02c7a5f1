package rag

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"docqa/internal/config"
	"docqa/internal/models"
)

// VectorStore is the part of a per-document store the retriever needs.
type VectorStore interface {
	SimilaritySearchWithScores(ctx context.Context, query string, k int) ([]models.ScoredChunk, error)
	GetAllChunks(ctx context.Context) ([]models.Chunk, error)
}

const (
	StrategyHybrid   = "hybrid"
	StrategySemantic = "semantic"
)

// Retriever ranks the chunks of one store for a query.
type Retriever struct {
	SemanticWeight     float64
	LexicalWeight      float64
	RelevanceThreshold float64
	// NormalizeTokens switches BM25 to case and punctuation insensitive terms.
	NormalizeTokens bool
}

func NewRetriever(cfg *config.RAGConfig) *Retriever {
	return &Retriever{
		SemanticWeight:     cfg.SemanticWeight,
		LexicalWeight:      cfg.LexicalWeight,
		RelevanceThreshold: cfg.RelevanceThreshold,
		NormalizeTokens:    cfg.NormalizeTokens,
	}
}

func (r *Retriever) tokenize(text string) []string {
	if r.NormalizeTokens {
		return NormalizeTokens(text)
	}
	return Tokenize(text)
}

// Retrieve fuses semantic similarity with BM25 over the whole corpus and
// returns at most k candidates by descending combined score. The lexical
// score is normalized by the best lexical score in the corpus.
func (r *Retriever) Retrieve(ctx context.Context, store VectorStore, query string, k int) ([]models.ScoredCandidate, error) {
	start := time.Now()
	defer func() { retrievalDuration.WithLabelValues(StrategyHybrid).Observe(time.Since(start).Seconds()) }()

	if k <= 0 {
		return nil, nil
	}

	semantic, err := store.SimilaritySearchWithScores(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}
	corpus, err := store.GetAllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	if len(corpus) == 0 {
		return []models.ScoredCandidate{}, nil
	}

	tokenized := make([][]string, len(corpus))
	for i, ch := range corpus {
		tokenized[i] = r.tokenize(ch.Content)
	}
	lexical := NewBM25(tokenized).Scores(r.tokenize(query))

	maxLexical := 0.0
	for _, s := range lexical {
		maxLexical = max(maxLexical, s)
	}

	byID := make(map[string]int, len(corpus))
	byContent := make(map[string]int, len(corpus))
	for i, ch := range corpus {
		if _, ok := byID[ch.ID]; !ok && ch.ID != "" {
			byID[ch.ID] = i
		}
		if _, ok := byContent[ch.Content]; !ok {
			byContent[ch.Content] = i
		}
	}

	candidates := make([]models.ScoredCandidate, 0, len(semantic))
	for _, hit := range semantic {
		c := models.ScoredCandidate{
			Chunk:         hit.Chunk,
			SemanticScore: hit.Score,
			CombinedScore: r.SemanticWeight * hit.Score,
		}

		idx, ok := byID[hit.Chunk.ID]
		if !ok {
			idx, ok = byContent[hit.Chunk.Content]
		}
		if ok {
			if maxLexical > 0 {
				c.LexicalScore = clampUnit(lexical[idx] / maxLexical)
			}
			c.CombinedScore += r.LexicalWeight * c.LexicalScore
		} else {
			log.Debug().Str("chunk_id", hit.Chunk.ID).Msg("Semantic hit not found in corpus")
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CombinedScore > candidates[j].CombinedScore
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// RetrieveSemantic keeps the semantic hits scoring above the relevance
// threshold, or all of them if fewer than two pass, in document order.
func (r *Retriever) RetrieveSemantic(ctx context.Context, store VectorStore, query string, k int) ([]models.ScoredCandidate, error) {
	start := time.Now()
	defer func() { retrievalDuration.WithLabelValues(StrategySemantic).Observe(time.Since(start).Seconds()) }()

	if k <= 0 {
		return nil, nil
	}
	hits, err := store.SimilaritySearchWithScores(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	var relevant []models.ScoredChunk
	for _, h := range hits {
		if h.Score > r.RelevanceThreshold {
			relevant = append(relevant, h)
		}
	}
	if len(relevant) < 2 {
		relevant = hits
	}

	candidates := make([]models.ScoredCandidate, len(relevant))
	for i, h := range relevant {
		candidates[i] = models.ScoredCandidate{
			Chunk:         h.Chunk,
			SemanticScore: h.Score,
			CombinedScore: h.Score,
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Chunk.ChunkIndex < candidates[j].Chunk.ChunkIndex
	})
	return candidates, nil
}

// RetrieveWith dispatches on strategy name.
func (r *Retriever) RetrieveWith(ctx context.Context, strategy string, store VectorStore, query string, k int) ([]models.ScoredCandidate, error) {
	switch strategy {
	case "", StrategyHybrid:
		return r.Retrieve(ctx, store, query, k)
	case StrategySemantic:
		return r.RetrieveSemantic(ctx, store, query, k)
	default:
		return nil, fmt.Errorf("unknown retrieval strategy %q", strategy)
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
