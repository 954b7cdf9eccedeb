package llm

// LMStudio talks to a local LM Studio server, which exposes the
// chat-completions dialect without authentication.
type LMStudio struct {
	*OpenAICompatible
}

func NewLMStudio(baseURL, model string) *LMStudio {
	return &LMStudio{
		OpenAICompatible: NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL: baseURL,
			Model:   model,
		}),
	}
}
