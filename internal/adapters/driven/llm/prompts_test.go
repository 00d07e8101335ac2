package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

type stubPromptStore struct {
	prompts map[string]string
}

func (s stubPromptStore) Load(name string) (string, error) {
	if p, ok := s.prompts[name]; ok {
		return p, nil
	}
	return "", errors.New("missing")
}

func (s stubPromptStore) Reload() {}

func TestRender_Defaults(t *testing.T) {
	system, user := Render(nil, driven.AnswerRequest{
		Question: "Quel est le délai de retour ?",
		Sources:  []string{"Vous disposez de 30 jours.", "  Le retour est gratuit.  "},
		Context:  map[string]string{"page": "cart", "locale": "fr"},
		Language: "French",
	})

	assert.Equal(t, DefaultPrompts[driven.PromptAnswerSystem], system)
	assert.Contains(t, user, "Answer in French.")
	assert.Contains(t, user, "Source 1:\nVous disposez de 30 jours.")
	assert.Contains(t, user, "Source 2:\nLe retour est gratuit.")
	assert.Contains(t, user, "Customer question: Quel est le délai de retour ?")
	assert.Contains(t, user, "- locale: fr\n- page: cart\n")
}

func TestRender_NoContextNoLanguage(t *testing.T) {
	_, user := Render(nil, driven.AnswerRequest{Question: "q", Sources: []string{"s"}})

	assert.Contains(t, user, "Answer in the language of the question.")
	assert.NotContains(t, user, "Customer context")
}

func TestRender_CustomPrompts(t *testing.T) {
	store := stubPromptStore{prompts: map[string]string{
		driven.PromptAnswer: "[%[1]s] %[3]s <- %[2]s%[4]s",
	}}

	system, user := Render(store, driven.AnswerRequest{Question: "q", Sources: []string{"a"}, Language: "English"})

	// The system prompt falls back to the default.
	assert.Equal(t, DefaultPrompts[driven.PromptAnswerSystem], system)
	assert.Equal(t, "[English] q <- Source 1:\na", user)
}

func TestCheckPrompt(t *testing.T) {
	assert.NoError(t, CheckPrompt(driven.PromptAnswer, DefaultPrompts[driven.PromptAnswer]))
	assert.NoError(t, CheckPrompt(driven.PromptAnswerSystem, "Be brief."))

	err := CheckPrompt(driven.PromptAnswer, "Answer in %[1]s: %[3]s")
	assert.EqualError(t, err, `prompt "answer" is missing %[2]s, %[4]s`)

	assert.Error(t, CheckPrompt(driven.PromptAnswerSystem, "  \n"))
}
