// Package llm holds what the answer generation adapters share: the default
// prompts and how an AnswerRequest is rendered into them.
package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
)

// DefaultPrompts are used when no PromptStore is configured and as the
// initial content of user-editable prompt files.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var DefaultPrompts = map[string]string{
	driven.PromptAnswerSystem: `You are the shopping assistant of SmartMarket, an online store. You answer customer questions using only the knowledge base excerpts you are given. If the excerpts do not contain the answer, say so plainly. Never invent policies, prices or delays. Do not mention that you are an AI.`,

	driven.PromptAnswer: `Answer in %[1]s.

Knowledge base excerpts:
%[2]s

Customer question: %[3]s
%[4]s
Instructions:
- Base your answer only on the excerpts above
- If the information is not in the excerpts, say it clearly
- Be concise and helpful

Answer:`,
}

// answerPlaceholders must all appear in a customised answer prompt.
var answerPlaceholders = []string{"%[1]s", "%[2]s", "%[3]s", "%[4]s"}

// CheckPrompt reports a customised template that would drop part of the request.
func CheckPrompt(name, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("prompt %q is empty", name)
	}
	if name != driven.PromptAnswer {
		return nil
	}
	var missing []string
	for _, p := range answerPlaceholders {
		if !strings.Contains(text, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("prompt %q is missing %s", name, strings.Join(missing, ", "))
	}
	return nil
}

// Render builds the system and user messages of an answer request.
// Templates come from store when set, falling back to DefaultPrompts.
func Render(store driven.PromptStore, req driven.AnswerRequest) (system, user string) {
	system = load(store, driven.PromptAnswerSystem)
	language := req.Language
	if language == "" {
		language = "the language of the question"
	}
	user = fmt.Sprintf(load(store, driven.PromptAnswer),
		language, FormatSources(req.Sources), req.Question, formatContext(req.Context))
	return system, user
}

// FormatSources numbers the retrieved texts, best first.
func FormatSources(sources []string) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = fmt.Sprintf("Source %d:\n%s", i+1, strings.TrimSpace(s))
	}
	return strings.Join(parts, "\n\n")
}

func formatContext(ctx map[string]string) string {
	if len(ctx) == 0 {
		return ""
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Customer context:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, ctx[k])
	}
	return b.String()
}

func load(store driven.PromptStore, name string) string {
	if store != nil {
		if p, err := store.Load(name); err == nil && p != "" {
			return p
		}
	}
	return DefaultPrompts[name]
}
