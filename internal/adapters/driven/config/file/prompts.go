package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Jeremy-Tarlie/smartmarket/internal/adapters/driven/llm"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

const promptExt = ".txt"

const promptReadme = `# SmartMarket Prompts

Edit these files to change how the assistant phrases its answers.
Changes are picked up on the next command or after restarting the server.

- answer_system.txt: system message sent to chat style backends
- answer.txt: grounded answer template

answer.txt takes indexed Go fmt placeholders, all of which must be kept:

- %[1]s answer language
- %[2]s numbered knowledge base excerpts
- %[3]s customer question
- %[4]s customer context, empty when absent

A template that drops a placeholder is ignored and the built-in one is used.
`

// PromptStore serves answer prompts from a directory of editable text files.
// The directory is seeded with the built-in prompts on first use. A file
// that is missing, unreadable or drops a placeholder yields the built-in prompt.
type PromptStore struct {
	dir string

	mu      sync.Mutex
	seeded  bool
	prompts map[string]string
}

// NewPromptStore creates a prompt store rooted at dir.
// An empty dir means ~/.smartmarket/prompts. Nothing is touched on disk
// until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, DirName, "prompts")
	}
	return &PromptStore{dir: dir, prompts: make(map[string]string)}, nil
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

// Load returns the template for name. Results are kept until Reload.
func (s *PromptStore) Load(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.prompts[name]; ok {
		return p, nil
	}
	if !s.seeded {
		if err := s.seed(); err != nil {
			logger.Warn("prompts: %v, using built-in prompts", err)
		}
		s.seeded = true
	}

	builtin, known := llm.DefaultPrompts[name]
	p, err := s.read(name)
	switch {
	case err == nil:
	case known:
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("prompts: %v, using built-in %s prompt", err, name)
		}
		p = builtin
	default:
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	s.prompts[name] = p
	return p, nil
}

// Reload drops the loaded templates so the next Load reads the files again.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = make(map[string]string)
}

func (s *PromptStore) read(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name+promptExt))
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	if err := llm.CheckPrompt(name, text); err != nil {
		return "", err
	}
	return text, nil
}

// seed writes the built-in prompts and the README without replacing user edits.
func (s *PromptStore) seed() error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create prompt directory: %w", err)
	}
	files := map[string]string{"README.md": promptReadme}
	for name, content := range llm.DefaultPrompts {
		files[name+promptExt] = content
	}
	for name, content := range files {
		if err := writeIfMissing(filepath.Join(s.dir, name), content); err != nil {
			return err
		}
	}
	return nil
}

func writeIfMissing(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
