package driven

// PromptStore provides access to generation prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptAnswer grounds an answer in retrieved sources. Placeholders:
	// %[1]s language, %[2]s numbered sources, %[3]s question, %[4]s caller context.
	PromptAnswer = "answer"

	// PromptAnswerSystem is the system message for chat style backends.
	// It has no placeholders.
	PromptAnswerSystem = "answer_system"
)

// PromptStoreAware is implemented by generators whose prompts can be customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store. Without one, built-in prompts are used.
	SetPromptStore(store PromptStore)
}
