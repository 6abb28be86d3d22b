package llm

import (
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// copilotPrefix routes a model to a Copilot CLI session; the prefix is
// stripped before the session is created.
const copilotPrefix = "copilot/"

var openAIModels = map[string]bool{
	openai.GPT4o:     true,
	openai.GPT4oMini: true,
	openai.O1Mini:    true,
	openai.O1Preview: true,
}

var anthropicModels = map[string]bool{
	"claude-3-5-sonnet-latest": true,
	"claude-3-5-haiku-latest":  true,
}

// noSystemRole lists models that reject the system role; no system message
// is inserted for them.
var noSystemRole = map[string]bool{
	openai.O1Mini:    true,
	openai.O1Preview: true,
}

// Supported reports whether a model name can be routed to a provider.
func Supported(model string) bool {
	if openAIModels[model] || anthropicModels[model] {
		return true
	}
	return strings.HasPrefix(model, copilotPrefix) && len(model) > len(copilotPrefix)
}

// CredentialEnv names the environment variable holding the credential for
// the model's provider. Copilot models authenticate through the CLI session
// and return "".
func CredentialEnv(model string) string {
	switch {
	case openAIModels[model]:
		return "OPENAI_API_KEY"
	case anthropicModels[model]:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// SupportedModels returns the routable model names, sorted, for error
// messages. Copilot models are open-ended and shown as a pattern.
func SupportedModels() []string {
	names := make([]string, 0, len(openAIModels)+len(anthropicModels)+1)
	for m := range openAIModels {
		names = append(names, m)
	}
	for m := range anthropicModels {
		names = append(names, m)
	}
	sort.Strings(names)
	return append(names, copilotPrefix+"<model>")
}
