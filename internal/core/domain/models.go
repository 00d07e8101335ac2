package domain

// ModelRole names what a model backend is used for.
type ModelRole string

// Model roles.
const (
	ModelRoleEmbedding ModelRole = "embedding"
	ModelRoleLLM       ModelRole = "llm"
)

// ModelCheck is the outcome of probing one configured model backend.
type ModelCheck struct {
	Role     ModelRole  `json:"role"`
	Provider AIProvider `json:"provider"`
	Model    string     `json:"model"`

	// Error is empty when the backend answered.
	Error string `json:"error,omitempty"`
}

// OK reports whether the backend answered.
func (c ModelCheck) OK() bool {
	return c.Error == ""
}
