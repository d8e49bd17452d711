package service

import (
	"context"
	"fmt"
	"strings"

	"doc-qa-be/internal/config"
	"doc-qa-be/internal/dto"
	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/pkg/serverutils"
	"doc-qa-be/internal/repository/contract"
	"doc-qa-be/pkg/embedding"
	"doc-qa-be/pkg/llm"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

type IChatService interface {
	Chat(ctx context.Context, req *dto.ChatRequest) (*dto.ChatResponse, error)
	ChatBatch(ctx context.Context, req *dto.ChatBatchRequest) (*dto.ChatBatchResponse, error)
}

// chatService answers questions against stored documents. Similarity
// lookups fan out per (question, document) pair; the fanout draws from one
// permit pool sized by RETRIEVAL_MAX_CONCURRENCY, shared by every request
// in the process, so a large batch cannot starve the backend.
type chatService struct {
	store             contract.DocumentStore
	embeddingProvider embedding.EmbeddingProvider
	llmProvider       llm.LLMProvider
	retrievalCfg      config.RetrievalConfig
	permits           *semaphore.Weighted
	logger            logger.ILogger
}

func NewChatService(
	store contract.DocumentStore,
	embeddingProvider embedding.EmbeddingProvider,
	llmProvider llm.LLMProvider,
	retrievalCfg config.RetrievalConfig,
	log logger.ILogger,
) IChatService {
	maxConcurrency := retrievalCfg.MaxConcurrency
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &chatService{
		store:             store,
		embeddingProvider: embeddingProvider,
		llmProvider:       llmProvider,
		retrievalCfg:      retrievalCfg,
		permits:           semaphore.NewWeighted(int64(maxConcurrency)),
		logger:            log,
	}
}

// retrievalQuery is one validated question with its normalized target
// documents.
type retrievalQuery struct {
	Question   string
	DocIds     []uuid.UUID
	MatchCount int
}

func (cs *chatService) Chat(ctx context.Context, req *dto.ChatRequest) (*dto.ChatResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, serverutils.NewValidationError("question must not be empty")
	}

	docId, err := uuid.Parse(strings.TrimSpace(req.DocId))
	if err != nil {
		return nil, serverutils.NewValidationError("doc_id must be a valid uuid")
	}

	matchCount, err := cs.resolveMatchCount(req.MatchCount)
	if err != nil {
		return nil, err
	}

	if _, err := cs.store.GetDocument(ctx, docId); err != nil {
		return nil, err
	}

	results, err := cs.gather(ctx, []retrievalQuery{{
		Question:   question,
		DocIds:     []uuid.UUID{docId},
		MatchCount: matchCount,
	}})
	if err != nil {
		return nil, err
	}

	answer, err := cs.answer(ctx, question, results[0])
	if err != nil {
		return nil, err
	}

	return &dto.ChatResponse{
		Question: question,
		Chunks:   len(results[0]),
		Answer:   answer,
	}, nil
}

func (cs *chatService) ChatBatch(ctx context.Context, req *dto.ChatBatchRequest) (*dto.ChatBatchResponse, error) {
	// The whole batch is validated before any embedding call: a malformed
	// query must not cost provider quota for its siblings.
	queries, err := cs.validateBatch(req)
	if err != nil {
		return nil, err
	}

	results, err := cs.gather(ctx, queries)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ChatResponse, len(queries))
	for i, q := range queries {
		answer, err := cs.answer(ctx, q.Question, results[i])
		if err != nil {
			return nil, err
		}
		docIds := make([]string, len(q.DocIds))
		for j, id := range q.DocIds {
			docIds[j] = id.String()
		}
		responses[i] = dto.ChatResponse{
			Question: q.Question,
			DocIds:   docIds,
			Chunks:   len(results[i]),
			Answer:   answer,
		}
	}

	return &dto.ChatBatchResponse{
		Count:   len(responses),
		Results: responses,
	}, nil
}

func (cs *chatService) validateBatch(req *dto.ChatBatchRequest) ([]retrievalQuery, error) {
	if len(req.Queries) == 0 {
		return nil, serverutils.NewValidationError("queries must not be empty")
	}
	if len(req.Queries) > cs.retrievalCfg.BatchMaxItems {
		return nil, serverutils.NewValidationError(
			"batch size %d exceeds limit of %d queries", len(req.Queries), cs.retrievalCfg.BatchMaxItems)
	}

	queries := make([]retrievalQuery, 0, len(req.Queries))
	for i, item := range req.Queries {
		question := strings.TrimSpace(item.Question)
		if question == "" {
			return nil, serverutils.NewValidationError("queries[%d]: question must not be empty", i)
		}

		matchCount, err := cs.resolveMatchCount(item.MatchCount)
		if err != nil {
			return nil, serverutils.NewValidationError("queries[%d]: match_count must be at least 1", i)
		}

		docIds, err := normalizeDocIds(item.DocIds)
		if err != nil {
			return nil, serverutils.NewValidationError("queries[%d]: %v", i, err)
		}
		if len(docIds) == 0 {
			return nil, serverutils.NewValidationError("queries[%d]: doc_ids must not be empty", i)
		}
		if len(docIds) > cs.retrievalCfg.MaxDocIdsPerQuery {
			return nil, serverutils.NewValidationError(
				"queries[%d]: %d doc ids exceeds limit of %d", i, len(docIds), cs.retrievalCfg.MaxDocIdsPerQuery)
		}

		queries = append(queries, retrievalQuery{
			Question:   question,
			DocIds:     docIds,
			MatchCount: matchCount,
		})
	}
	return queries, nil
}

// normalizeDocIds trims, parses and deduplicates document ids, keeping
// first-seen order.
func normalizeDocIds(raw []string) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{}, len(raw))
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(strings.TrimSpace(r))
		if err != nil {
			return nil, fmt.Errorf("doc id %q is not a valid uuid", r)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (cs *chatService) resolveMatchCount(requested int) (int, error) {
	if requested < 0 {
		return 0, serverutils.NewValidationError("match_count must be at least 1")
	}
	if requested == 0 {
		return cs.retrievalCfg.DefaultMatchCount, nil
	}
	return requested, nil
}

// gather runs one similarity lookup per (query, document) branch. Branches
// run concurrently under the shared permit pool; the first failing branch
// cancels the rest and fails the whole gather. Result order follows input
// order, with each query's matches concatenated in doc id order.
func (cs *chatService) gather(ctx context.Context, queries []retrievalQuery) ([][]entity.ChunkMatch, error) {
	vectors := make([][]float32, len(queries))
	for i, q := range queries {
		vec, err := cs.embeddingProvider.Generate(ctx, q.Question)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}

	perDoc := make([][][]entity.ChunkMatch, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		perDoc[i] = make([][]entity.ChunkMatch, len(q.DocIds))
		for j, docId := range q.DocIds {
			i, q, j, docId := i, q, j, docId
			g.Go(func() error {
				if err := cs.permits.Acquire(gctx, 1); err != nil {
					return err
				}
				defer cs.permits.Release(1)

				matches, err := cs.store.FindSimilarChunks(gctx, docId, vectors[i], q.MatchCount)
				if err != nil {
					return fmt.Errorf("retrieval for document %s: %w", docId, err)
				}
				perDoc[i][j] = matches
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([][]entity.ChunkMatch, len(queries))
	for i := range perDoc {
		merged := make([]entity.ChunkMatch, 0)
		for _, matches := range perDoc[i] {
			merged = append(merged, matches...)
		}
		results[i] = merged
	}
	return results, nil
}

// answer builds the grounded prompt and asks the LLM. With no matches the
// model is skipped entirely.
func (cs *chatService) answer(ctx context.Context, question string, matches []entity.ChunkMatch) (string, error) {
	if len(matches) == 0 {
		return "I could not find anything relevant to your question in the requested documents.", nil
	}

	var sb strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, m.ChunkText)
	}

	prompt := fmt.Sprintf(`You are a helpful assistant answering questions about uploaded documents.
Answer using ONLY the context below. If the context does not contain the answer, say so.

Context:
%s
Question: %s`, sb.String(), question)

	return cs.llmProvider.Generate(ctx, prompt)
}
