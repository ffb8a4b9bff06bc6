// Package mail holds notification templates, renders them and prepares the
// resulting letters for delivery.
package mail

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// ErrTemplateNotFound is returned when no template is stored under a key.
var ErrTemplateNotFound = errors.New("template not found")

// Template is a mail template addressed by key. Subject and Body are Mustache
// sources.
type Template struct {
	Key     string `yaml:"key" json:"key"`
	Subject string `yaml:"subject" json:"subject"`
	Body    string `yaml:"body" json:"body"`
}

// TemplateSource looks templates up by key.
type TemplateSource interface {
	GetTemplate(key string) (Template, error)
}

// templateFile is the on-disk layout of a template file.
type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// TemplateStore keeps templates loaded from YAML files matched by glob patterns.
type TemplateStore struct {
	patterns []string
	logger   *slog.Logger

	mu        sync.RWMutex
	templates map[string]Template
	files     []string
}

// NewTemplateStore creates a store over the glob patterns. Nothing is read
// until Load is called.
func NewTemplateStore(patterns []string, logger *slog.Logger) *TemplateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateStore{
		patterns:  append([]string(nil), patterns...),
		logger:    logger,
		templates: make(map[string]Template),
	}
}

// GetTemplate returns the template stored under key.
func (s *TemplateStore) GetTemplate(key string) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[key]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, key)
	}
	return t, nil
}

// Put stores a template, replacing any template with the same key.
func (s *TemplateStore) Put(t Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.Key] = t
}

// Keys returns the stored template keys sorted.
func (s *TemplateStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.templates))
	for k := range s.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Files returns the files read by the last successful Load.
func (s *TemplateStore) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.files...)
}

// Load reads every file matched by the patterns and replaces the stored
// templates. On error the previous templates are kept.
func (s *TemplateStore) Load() error {
	files, err := s.match()
	if err != nil {
		return err
	}

	templates := make(map[string]Template)
	for _, path := range files {
		loaded, err := readTemplateFile(path)
		if err != nil {
			return err
		}
		for _, t := range loaded {
			if prev, ok := templates[t.Key]; ok && prev != t {
				s.logger.Warn("Template redefined, last file wins", "key", t.Key, "file", path)
			}
			templates[t.Key] = t
		}
	}

	s.mu.Lock()
	s.templates = templates
	s.files = files
	s.mu.Unlock()

	s.logger.Info("Mail templates loaded", "files", len(files), "templates", len(templates))
	return nil
}

// match expands the patterns into a sorted, de-duplicated file list.
func (s *TemplateStore) match() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range s.patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, m := range matches {
			if !isTemplateFile(m) || seen[m] {
				continue
			}
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func readTemplateFile(path string) ([]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template file %s: %w", path, err)
	}

	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse template file %s: %w", path, err)
	}

	for i, t := range tf.Templates {
		if strings.TrimSpace(t.Key) == "" {
			return nil, fmt.Errorf("template file %s: template %d has no key", path, i)
		}
	}
	return tf.Templates, nil
}

func isTemplateFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
