package mail

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const executorTemplates = `templates:
  - key: contract-notify-executor
    subject: "{{app_name}}: contracts need attention"
    body: "<p>{{contract_list}}</p>"
  - key: contract-notify-controller
    subject: "{{app_name}}: contracts for review"
    body: "<pre>{{contract_list}}</pre>"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestTemplateStore_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "base.yaml"), executorTemplates)
	writeFile(t, filepath.Join(dir, "nested", "deep", "extra.yml"), `templates:
  - key: contract-notify-department
    subject: dept
    body: dept body
`)
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a template")

	store := NewTemplateStore([]string{filepath.Join(dir, "**", "*")}, nil)
	require.NoError(t, store.Load())

	assert.Equal(t, []string{
		"contract-notify-controller",
		"contract-notify-department",
		"contract-notify-executor",
	}, store.Keys())
	assert.Len(t, store.Files(), 2)

	tmpl, err := store.GetTemplate("contract-notify-department")
	require.NoError(t, err)
	assert.Equal(t, Template{Key: "contract-notify-department", Subject: "dept", Body: "dept body"}, tmpl)
}

func TestTemplateStore_GetTemplate_Missing(t *testing.T) {
	store := NewTemplateStore(nil, nil)
	require.NoError(t, store.Load())

	_, err := store.GetTemplate("contract-notify-executor")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestTemplateStore_Load_LaterFileWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), "templates:\n  - key: k\n    subject: first\n")
	writeFile(t, filepath.Join(dir, "b.yaml"), "templates:\n  - key: k\n    subject: second\n")

	store := NewTemplateStore([]string{filepath.Join(dir, "*.yaml")}, nil)
	require.NoError(t, store.Load())

	tmpl, err := store.GetTemplate("k")
	require.NoError(t, err)
	assert.Equal(t, "second", tmpl.Subject)
}

func TestTemplateStore_Load_KeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "templates.yaml")
	writeFile(t, path, executorTemplates)

	store := NewTemplateStore([]string{filepath.Join(dir, "*.yaml")}, nil)
	require.NoError(t, store.Load())

	writeFile(t, path, "templates: [unclosed")
	assert.Error(t, store.Load())

	_, err := store.GetTemplate("contract-notify-executor")
	assert.NoError(t, err)
}

func TestTemplateStore_Load_RejectsMissingKey(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.yaml"), "templates:\n  - subject: orphan\n")

	store := NewTemplateStore([]string{filepath.Join(dir, "*.yaml")}, nil)
	err := store.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no key")
}

func TestTemplateStore_Put(t *testing.T) {
	store := NewTemplateStore(nil, nil)
	store.Put(Template{Key: "k", Subject: "s", Body: "b"})

	tmpl, err := store.GetTemplate("k")
	require.NoError(t, err)
	assert.Equal(t, "s", tmpl.Subject)
}

func TestTemplateStore_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "templates.yaml")
	writeFile(t, path, executorTemplates)

	store := NewTemplateStore([]string{filepath.Join(dir, "*.yaml")}, nil)
	require.NoError(t, store.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, store.Watch(ctx, 20*time.Millisecond))

	writeFile(t, path, "templates:\n  - key: contract-notify-executor\n    subject: reloaded\n")

	assert.Eventually(t, func() bool {
		tmpl, err := store.GetTemplate("contract-notify-executor")
		return err == nil && tmpl.Subject == "reloaded"
	}, 5*time.Second, 20*time.Millisecond)

	_, err := store.GetTemplate("contract-notify-controller")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestShippedTemplates(t *testing.T) {
	store := NewTemplateStore([]string{"../templates/**/*.yaml"}, nil)
	require.NoError(t, store.Load())

	assert.Equal(t, []string{
		"contract-notify-controller",
		"contract-notify-controller-not-uz",
		"contract-notify-department",
		"contract-notify-executor",
	}, store.Keys())

	r := NewMustacheRenderer()
	for _, key := range store.Keys() {
		tmpl, err := store.GetTemplate(key)
		require.NoError(t, err)

		letter, err := RenderLetter(r, tmpl, map[string]any{
			"app_name":      "Optiflow",
			"contract_list": "1/26 https://optiflow.example/#/d:c1",
		})
		require.NoError(t, err, key)
		assert.Contains(t, letter.Subject, "Optiflow", key)
		assert.Contains(t, letter.Body, "1/26 https://optiflow.example/#/d:c1", key)
	}
}
