package dto

type ChatRequest struct {
	Question   string `json:"question" validate:"required,min=1"`
	DocId      string `json:"doc_id" validate:"required,uuid"`
	MatchCount int    `json:"match_count"`
}

type ChatBatchItem struct {
	Question   string   `json:"question" validate:"required,min=1"`
	DocIds     []string `json:"doc_ids" validate:"required,min=1"`
	MatchCount int      `json:"match_count"`
}

type ChatBatchRequest struct {
	Queries []ChatBatchItem `json:"queries" validate:"required,min=1,dive"`
}

type ChatResponse struct {
	Question string   `json:"question"`
	DocIds   []string `json:"doc_ids,omitempty"`
	Chunks   int      `json:"chunks"`
	Answer   string   `json:"answer"`
}

type ChatBatchResponse struct {
	Count   int            `json:"count"`
	Results []ChatResponse `json:"results"`
}
