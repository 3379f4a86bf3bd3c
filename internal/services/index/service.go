package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vulnaq/internal/interfaces"
	"github.com/ternarybob/vulnaq/internal/services/advisories"
)

// candidateMultiplier controls how many raw chunk hits are considered
// when grouping into advisory results. Several chunks usually hit the
// same advisory, so the candidate pool is larger than topK.
const candidateMultiplier = 8

// Service implements semantic search over the advisory corpus. Chunks
// are embedded once and persisted; searches embed the query and rank
// stored chunks by cosine similarity, grouping hits by advisory.
type Service struct {
	advisories *advisories.Service
	llm        interfaces.LLMService
	storage    *ChunkStorage
	logger     arbor.ILogger
}

// NewService creates the advisory index service.
// llm provides both embeddings and the code-block summarization used
// during chunking.
func NewService(advisoryService *advisories.Service, llm interfaces.LLMService, storage *ChunkStorage, logger arbor.ILogger) *Service {
	return &Service{
		advisories: advisoryService,
		llm:        llm,
		storage:    storage,
		logger:     logger,
	}
}

// Store chunks and embeds every advisory, persisting the results.
// Already-populated storage is left alone so repeated startups don't
// re-embed the corpus.
func (s *Service) Store(ctx context.Context) error {
	count, err := s.storage.Count()
	if err != nil {
		return err
	}
	if count > 0 {
		s.logger.Info().Int("chunks", count).Msg("Chunk index already populated, skipping embedding")
		return nil
	}

	total := 0
	for _, advisory := range s.advisories.All() {
		chunks, err := advisories.Chunks(ctx, advisory, s.llm)
		if err != nil {
			return fmt.Errorf("chunking failed for %s: %w", advisory.Filename, err)
		}

		for _, chunk := range chunks {
			embedding, err := s.llm.Embed(ctx, chunk.Text)
			if err != nil {
				return fmt.Errorf("embedding failed for %s: %w", advisory.Filename, err)
			}

			record := &ChunkRecord{
				ID:               uuid.New().String(),
				AdvisoryFilename: chunk.AdvisoryFilename,
				SectionIndex:     chunk.SectionIndex,
				Text:             chunk.Text,
				SourceType:       string(chunk.SourceType),
				Embedding:        embedding,
			}
			if err := s.storage.Put(record); err != nil {
				return err
			}
			total++
		}

		s.logger.Debug().
			Str("advisory", advisory.Filename).
			Int("chunks", len(chunks)).
			Msg("Advisory embedded")
	}

	s.logger.Info().Int("chunks", total).Msg("Advisory corpus embedded and indexed")
	return nil
}

// scoredChunk pairs a stored chunk with its query similarity
type scoredChunk struct {
	record ChunkRecord
	score  float64
}

// Search embeds the query, ranks all stored chunks by cosine similarity
// and groups the best hits by advisory. Each result carries the distinct
// matching section indices in hit order. Returns an error if the index
// has never been built.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]interfaces.IndexSearchResult, error) {
	records, err := s.storage.All()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("advisory index is empty: call Store before Search")
	}

	queryEmbedding, err := s.llm.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored := make([]scoredChunk, 0, len(records))
	for _, record := range records {
		scored = append(scored, scoredChunk{
			record: record,
			score:  cosineSimilarity(queryEmbedding, record.Embedding),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	limit := topK * candidateMultiplier
	if limit > len(scored) {
		limit = len(scored)
	}

	// Group top chunks by advisory in best-hit order, collecting the
	// distinct section indices each advisory matched on.
	order := make([]string, 0, topK)
	sections := make(map[string][]int)
	seen := make(map[string]map[int]bool)

	for _, hit := range scored[:limit] {
		filename := hit.record.AdvisoryFilename
		if _, ok := seen[filename]; !ok {
			if len(order) >= topK {
				continue
			}
			order = append(order, filename)
			seen[filename] = make(map[int]bool)
		}
		if !seen[filename][hit.record.SectionIndex] {
			seen[filename][hit.record.SectionIndex] = true
			sections[filename] = append(sections[filename], hit.record.SectionIndex)
		}
	}

	results := make([]interfaces.IndexSearchResult, 0, len(order))
	for _, filename := range order {
		advisory, ok := s.advisories.Get(filename)
		if !ok {
			return nil, fmt.Errorf("indexed chunk references unknown advisory %s", filename)
		}
		results = append(results, interfaces.IndexSearchResult{
			Advisory:       advisory,
			SectionIndices: sections[filename],
		})
	}

	s.logger.Debug().
		Str("query", query).
		Int("advisories", len(results)).
		Msg("Advisory search completed")

	return results, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-length vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
