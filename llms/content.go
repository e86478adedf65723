package llms

type ContentResponse struct {
	Choices []*ContentChoice
}

type ContentChoice struct {
	Content        string
	StopReason     string
	GenerationInfo map[string]any
}

// NewTextResponse wraps a single text completion.
func NewTextResponse(content, stopReason string, info map[string]any) *ContentResponse {
	return &ContentResponse{
		Choices: []*ContentChoice{{
			Content:        content,
			StopReason:     stopReason,
			GenerationInfo: info,
		}},
	}
}
