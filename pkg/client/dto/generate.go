package dto

type GenerateContentRequest struct {
	Contents []Content `json:"contents" yaml:"contents"` // conversation turns, a single user turn here
	Tools    []Tool    `json:"tools,omitempty" yaml:"tools,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty" yaml:"role,omitempty"`
	Parts []Part `json:"parts" yaml:"parts"`
}

type Part struct {
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}

type Tool struct {
	GoogleSearch *GoogleSearch `json:"google_search,omitempty" yaml:"google_search,omitempty"` // enables search grounding
}

type GoogleSearch struct{}

type GenerateContentResponse struct {
	Candidates []Candidate `json:"candidates" yaml:"candidates"`
}

type Candidate struct {
	Content           *Content           `json:"content,omitempty" yaml:"content,omitempty"`
	FinishReason      string             `json:"finishReason,omitempty" yaml:"finishReason,omitempty"`
	GroundingMetadata *GroundingMetadata `json:"groundingMetadata,omitempty" yaml:"groundingMetadata,omitempty"`
}

type GroundingMetadata struct {
	GroundingAttributions []GroundingAttribution `json:"groundingAttributions,omitempty" yaml:"groundingAttributions,omitempty"`
	GroundingChunks       []GroundingChunk       `json:"groundingChunks,omitempty" yaml:"groundingChunks,omitempty"` // newer API revisions report sources here
	WebSearchQueries      []string               `json:"webSearchQueries,omitempty" yaml:"webSearchQueries,omitempty"`
}

type GroundingAttribution struct {
	Web *WebSource `json:"web,omitempty" yaml:"web,omitempty"`
}

type GroundingChunk struct {
	Web *WebSource `json:"web,omitempty" yaml:"web,omitempty"`
}

type WebSource struct {
	URI   string `json:"uri,omitempty" yaml:"uri,omitempty"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

type ErrorResponse struct {
	Error *ErrorBody `json:"error,omitempty" yaml:"error,omitempty"`
}

type ErrorBody struct {
	Code    int    `json:"code,omitempty" yaml:"code,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	Status  string `json:"status,omitempty" yaml:"status,omitempty"`
}

// NewSearchGroundedRequest builds a single-turn request with google search grounding enabled.
func NewSearchGroundedRequest(prompt string) GenerateContentRequest {
	return GenerateContentRequest{
		Contents: []Content{{Parts: []Part{{Text: prompt}}}},
		Tools:    []Tool{{GoogleSearch: &GoogleSearch{}}},
	}
}
