package providers

import (
	"fmt"
	"strings"
)

// Manager resolves the configured provider lists into one active LLM
// provider and one active embedding provider, falling back to the
// deterministic mock when nothing usable is configured.
type Manager struct {
	llm      LLMProvider
	llmRef   ProviderRef
	embed    EmbeddingProvider
	embedRef ProviderRef
}

func NewManager(llmList, embedList string, embedDim int) (*Manager, error) {
	m := &Manager{}
	for _, ref := range ParseProviderList(llmList) {
		p, err := buildProvider(ref, embedDim)
		if err != nil {
			return nil, err
		}
		llm, ok := p.(LLMProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support generation", ref.Raw)
		}
		m.llm, m.llmRef = llm, ref
		break
	}
	for _, ref := range ParseProviderList(embedList) {
		p, err := buildProvider(ref, embedDim)
		if err != nil {
			return nil, err
		}
		embed, ok := p.(EmbeddingProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support embeddings", ref.Raw)
		}
		m.embed, m.embedRef = embed, ref
		break
	}
	if m.llm == nil {
		m.llm, m.llmRef = NewMockProvider(embedDim), ProviderRef{Raw: "mock", Name: "mock"}
	}
	if m.embed == nil {
		m.embed, m.embedRef = NewMockProvider(embedDim), ProviderRef{Raw: "mock", Name: "mock"}
	}
	return m, nil
}

func (m *Manager) LLM() LLMProvider            { return m.llm }
func (m *Manager) Embedder() EmbeddingProvider { return m.embed }

func (m *Manager) Describe() string {
	return fmt.Sprintf("llm=%s embed=%s", m.llmRef.Raw, m.embedRef.Raw)
}

func buildProvider(ref ProviderRef, dim int) (any, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(dim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
