package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const geminiModelName = "gemini-embedding-001"

// GeminiProvider calls the Gemini embedding REST API. gemini-embedding-001
// produces 3072-dimension vectors.
type GeminiProvider struct {
	apiKey    string
	dimension int
	client    *http.Client
}

func NewGeminiProvider(apiKey string, dimension int) EmbeddingProvider {
	if dimension <= 0 {
		dimension = 3072
	}
	return &GeminiProvider{
		apiKey:    apiKey,
		dimension: dimension,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type geminiContentPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiContentPart `json:"parts"`
}

type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiBatchEmbedRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiEmbeddingValues struct {
	Values []float32 `json:"values"`
}

type geminiBatchEmbedResponse struct {
	Embeddings []geminiEmbeddingValues `json:"embeddings"`
}

func (p *GeminiProvider) Dimension() int {
	return p.dimension
}

func (p *GeminiProvider) Generate(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.GenerateBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("gemini returned no embeddings")
	}
	return vectors[0], nil
}

func (p *GeminiProvider) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	requests := make([]geminiEmbedRequest, len(texts))
	for i, text := range texts {
		requests[i] = geminiEmbedRequest{
			Model:   "models/" + geminiModelName,
			Content: geminiContent{Parts: []geminiContentPart{{Text: text}}},
		}
	}

	reqJson, err := json.Marshal(geminiBatchEmbedRequest{Requests: requests})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:batchEmbedContents",
		geminiModelName,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(reqJson))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-goog-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	resByte, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error from gemini response, code %d, body %s", res.StatusCode, string(resByte))
	}

	var resEmbedding geminiBatchEmbedResponse
	if err := json.Unmarshal(resByte, &resEmbedding); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(resEmbedding.Embeddings))
	for i, emb := range resEmbedding.Embeddings {
		if len(emb.Values) != p.dimension {
			return nil, fmt.Errorf("embedding %d has %d dims, expected %d", i, len(emb.Values), p.dimension)
		}
		vectors[i] = emb.Values
	}

	return vectors, nil
}
