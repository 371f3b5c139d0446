package llm

// Provider names accepted by the factory.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderGoogle    = "google"
)

// ClientSpec describes the client a pipeline stage wants: which provider,
// which model, and the credentials or host needed to reach it.
type ClientSpec struct {
	Provider   string
	Model      string
	APIKey     string
	OllamaHost string
}

// Constructor builds a client from a spec. Provider packages register
// themselves here indirectly via NewFactory to avoid an import cycle.
type Constructor func(spec ClientSpec) (Client, error)

// Factory creates LLM clients per stage from configuration.
type Factory struct {
	constructors map[string]Constructor
}

// NewFactory creates a factory with the given provider constructors.
func NewFactory(constructors map[string]Constructor) *Factory {
	return &Factory{constructors: constructors}
}

// CreateClient builds a client for the given spec.
func (f *Factory) CreateClient(spec ClientSpec) (Client, error) {
	ctor, ok := f.constructors[spec.Provider]
	if !ok {
		return nil, &UnknownProviderError{Provider: spec.Provider}
	}
	return ctor(spec)
}

// Providers returns the set of registered provider names.
func (f *Factory) Providers() []string {
	names := make([]string, 0, len(f.constructors))
	for name := range f.constructors {
		names = append(names, name)
	}
	return names
}

// UnknownProviderError indicates a spec named a provider the factory
// has no constructor for.
type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return "unknown LLM provider: " + e.Provider
}
