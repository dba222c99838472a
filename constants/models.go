package constants

// ModelFamily groups model identifiers that share one request/response
// wire format.
type ModelFamily string

const (
	FamilyAnthropic ModelFamily = "anthropic" // Bedrock Claude, completions envelope
	FamilyMeta      ModelFamily = "meta"      // Bedrock Llama
	FamilyTitan     ModelFamily = "amazon"    // Bedrock Titan
	FamilyAI21      ModelFamily = "ai21"      // Bedrock Jurassic
	FamilyCohere    ModelFamily = "cohere"    // Bedrock Command
	FamilyOpenAI    ModelFamily = "openai"    // chat-completions endpoint
	FamilyOllama    ModelFamily = "ollama"    // local models
)
