// Package dir reads knowledge base documents from a directory tree.
//
// Supported files:
//
//	*.md, *.markdown, *.txt   one document, optional YAML front matter
//	*.yaml, *.yml, *.json     one document or a list of documents
//	*.html, *.htm             one document, metadata from <meta> tags
//
// Front matter and structured files use the SourceDocument fields
// (id, title, type, category, version, content). The legacy shape
// {"content": ..., "metadata": {...}} is also accepted.
package dir

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Jeremy-Tarlie/smartmarket/internal/core/domain"
	"github.com/Jeremy-Tarlie/smartmarket/internal/core/ports/driven"
	"github.com/Jeremy-Tarlie/smartmarket/internal/logger"
	"github.com/Jeremy-Tarlie/smartmarket/internal/normalisers/html"
)

// Ensure Source implements the interface.
var _ driven.DocumentSource = (*Source)(nil)

//go:embed demo
var demoFS embed.FS

const frontMatterDelim = "---"

// Source lists the documents found under the root of a file system.
type Source struct {
	fsys fs.FS
	name string
}

// New creates a source over fsys. name appears in logs.
func New(fsys fs.FS, name string) *Source {
	return &Source{fsys: fsys, name: name}
}

// Open creates a source over a directory on disk.
func Open(root string) (*Source, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: documents directory %s", domain.ErrNotFound, root)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrValidation, root)
	}
	return New(os.DirFS(root), root), nil
}

// Demo returns the built-in demonstration knowledge base.
func Demo() *Source {
	sub, err := fs.Sub(demoFS, "demo")
	if err != nil {
		panic(err)
	}
	return New(sub, "demo")
}

// Name identifies the source.
func (s *Source) Name() string {
	return s.name
}

// ListDocuments reads every supported file and returns the documents
// ordered by id. Unreadable or malformed files are skipped with a warning.
// Two documents with the same id are a validation error.
func (s *Source) ListDocuments(ctx context.Context) ([]domain.SourceDocument, error) {
	var docs []domain.SourceDocument
	seen := make(map[string]string)

	err := fs.WalkDir(s.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		data, err := fs.ReadFile(s.fsys, p)
		if err != nil {
			logger.Warn("documents: read %s: %v", p, err)
			return nil
		}
		found, err := Parse(p, data)
		if err != nil {
			if errors.Is(err, domain.ErrUnsupportedType) {
				logger.Debug("documents: skipping %s", p)
			} else {
				logger.Warn("documents: %v", err)
			}
			return nil
		}
		for _, doc := range found {
			if prev, dup := seen[doc.ID]; dup {
				return fmt.Errorf("%w: document id %q in both %s and %s", domain.ErrValidation, doc.ID, prev, p)
			}
			seen[doc.ID] = p
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(docs, func(a, b domain.SourceDocument) int {
		return domain.CompareIDs(a.ID, b.ID)
	})
	logger.Debug("documents: %d documents from %s", len(docs), s.name)
	return docs, nil
}

// fileDocument is the on-disk shape of a document.
type fileDocument struct {
	domain.SourceDocument `yaml:",inline"`

	Metadata *struct {
		Type     string `yaml:"type"`
		Category string `yaml:"category"`
		Title    string `yaml:"title"`
		Version  string `yaml:"version"`
	} `yaml:"metadata"`
}

func (f fileDocument) resolve() domain.SourceDocument {
	doc := f.SourceDocument
	if m := f.Metadata; m != nil {
		doc.Type = firstNonEmpty(doc.Type, m.Type)
		doc.Category = firstNonEmpty(doc.Category, m.Category)
		doc.Title = firstNonEmpty(doc.Title, m.Title)
		doc.Version = firstNonEmpty(doc.Version, m.Version)
	}
	return doc
}

// Parse decodes the documents held by one file. The file name selects the
// format and provides the default id of single-document files.
func Parse(name string, data []byte) ([]domain.SourceDocument, error) {
	ext := strings.ToLower(path.Ext(name))
	base := strings.TrimSuffix(path.Base(filepath.ToSlash(name)), path.Ext(name))

	var docs []domain.SourceDocument
	switch ext {
	case ".md", ".markdown", ".txt":
		doc, err := parseText(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		docs = []domain.SourceDocument{doc}
	case ".yaml", ".yml", ".json":
		var err error
		docs, err = parseStructured(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, name)
	}

	out := docs[:0]
	for i, doc := range docs {
		doc.Content = strings.TrimSpace(doc.Content)
		if doc.Content == "" {
			continue
		}
		if doc.ID == "" {
			doc.ID = base
			if len(docs) > 1 {
				doc.ID = fmt.Sprintf("%s-%d", base, i+1)
			}
		}
		if doc.Title == "" {
			doc.Title = firstHeading(doc.Content)
		}
		if doc.Title == "" {
			doc.Title = doc.ID
		}
		out = append(out, doc)
	}
	return out, nil
}

func parseText(data []byte) (domain.SourceDocument, error) {
	var f fileDocument
	body := data
	trimmed := bytes.TrimPrefix(data, []byte("\ufeff"))
	if bytes.HasPrefix(trimmed, []byte(frontMatterDelim+"\n")) || bytes.HasPrefix(trimmed, []byte(frontMatterDelim+"\r\n")) {
		rest := trimmed[bytes.IndexByte(trimmed, '\n')+1:]
		end := closingDelim(rest)
		if end < 0 {
			return domain.SourceDocument{}, fmt.Errorf("%w: unterminated front matter", domain.ErrValidation)
		}
		if err := yaml.Unmarshal(rest[:end], &f); err != nil {
			return domain.SourceDocument{}, fmt.Errorf("%w: front matter: %v", domain.ErrValidation, err)
		}
		body = rest[end:]
		if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
			body = body[nl+1:]
		} else {
			body = nil
		}
	}
	doc := f.resolve()
	doc.Content = string(body)
	return doc, nil
}

func parseHTML(data []byte) domain.SourceDocument {
	page := html.Extract(string(data))
	return domain.SourceDocument{
		ID:       page.Meta["id"],
		Title:    page.Title,
		Type:     page.Meta["type"],
		Category: page.Meta["category"],
		Version:  page.Meta["version"],
		Content:  page.Text,
	}
}

// closingDelim returns the offset of the line holding the closing "---".
func closingDelim(b []byte) int {
	offset := 0
	for offset <= len(b) {
		line := b[offset:]
		nl := bytes.IndexByte(line, '\n')
		if nl >= 0 {
			line = line[:nl]
		}
		if string(bytes.TrimRight(line, "\r ")) == frontMatterDelim {
			return offset
		}
		if nl < 0 {
			return -1
		}
		offset += nl + 1
	}
	return -1
}

func parseStructured(data []byte) ([]domain.SourceDocument, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	var files []fileDocument
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&files); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	case yaml.MappingNode:
		var f fileDocument
		if err := root.Decode(&f); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		files = []fileDocument{f}
	default:
		return nil, fmt.Errorf("%w: expected a document or a list of documents", domain.ErrValidation)
	}

	docs := make([]domain.SourceDocument, len(files))
	for i, f := range files {
		docs[i] = f.resolve()
	}
	return docs, nil
}

func firstHeading(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
