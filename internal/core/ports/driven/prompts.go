package driven

// Prompt names used by the preparation stage.
const (
	// PromptTranslate is the per-record translation prompt template.
	// It must contain the {record} placeholder.
	PromptTranslate = "translate"

	// PromptSystem is the system message sent with every request.
	PromptSystem = "system"
)

// PromptStore loads prompt templates by name.
type PromptStore interface {
	// Load returns the template for the given prompt name.
	Load(name string) (string, error)
}
