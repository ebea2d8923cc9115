package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
)

func writePrompt(t *testing.T, dir string, qtype domain.QuestionType, name, content string) {
	t.Helper()
	typeDir := filepath.Join(dir, string(qtype))
	require.NoError(t, os.MkdirAll(typeDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(typeDir, name), []byte(content), 0600))
}

func TestPromptStore_ImplementsInterface(t *testing.T) {
	var _ driven.PromptStore = (*PromptStore)(nil)
}

func TestNewPromptStore_WithCustomDir(t *testing.T) {
	dir := t.TempDir()

	store, err := NewPromptStore(dir)

	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())
}

func TestNewPromptStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewPromptStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".lexcards", "prompts"), store.Dir())
}

func TestNewPromptStore_NoIO(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prompts")

	_, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPromptStore_Resolve_CreatesDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Resolve(domain.QuestionFlashcard, "")
	require.NoError(t, err)

	for _, f := range []string{
		"flashcard/v1.0.md",
		"true_false/v1.0.md",
		"multiple_choice/v1.0.md",
		"cloze/v1.0.md",
		"README.md",
	} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, "expected file %s to exist", f)
	}
}

func TestPromptStore_Resolve_Defaults(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	for _, qtype := range promptTypes {
		t.Run(string(qtype), func(t *testing.T) {
			tmpl, err := store.Resolve(qtype, "")

			require.NoError(t, err)
			assert.Equal(t, qtype, tmpl.QuestionType)
			assert.Equal(t, "v1.0", tmpl.Version)
			assert.Contains(t, tmpl.System, "JSON")
			assert.NotContains(t, tmpl.System, userSeparator)
			assert.Contains(t, tmpl.User, "{{.Header}}")
			assert.Contains(t, tmpl.User, "{{.Sections}}")
			assert.Contains(t, tmpl.User, "{{.Footer}}")
		})
	}
}

func TestPromptStore_Resolve_HighestVersionWins(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, domain.QuestionCloze, "v1.2.md", "sys 1.2\n---user---\nuser 1.2")
	writePrompt(t, dir, domain.QuestionCloze, "v1.10.md", "sys 1.10\n---user---\nuser 1.10")
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	tmpl, err := store.Resolve(domain.QuestionCloze, "")

	require.NoError(t, err)
	assert.Equal(t, "v1.10", tmpl.Version)
	assert.Equal(t, "sys 1.10", tmpl.System)
	assert.Equal(t, "user 1.10", tmpl.User)
}

func TestPromptStore_Resolve_ActiveVersion(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, domain.QuestionTrueFalse, "v2.0.md", "s\n---user---\nu2")
	writePrompt(t, dir, domain.QuestionTrueFalse, "v1.1.md", "s\n---user---\nu11")
	writePrompt(t, dir, domain.QuestionTrueFalse, metadataFile, "active_version: \"1.1\"\ndescription: estable\n")
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	tmpl, err := store.Resolve(domain.QuestionTrueFalse, "")

	require.NoError(t, err)
	assert.Equal(t, "v1.1", tmpl.Version)
	assert.Equal(t, "u11", tmpl.User)
}

func TestPromptStore_Resolve_UnknownActiveFallsBackToHighest(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, domain.QuestionTrueFalse, metadataFile, "active_version: v9.9\n")
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	tmpl, err := store.Resolve(domain.QuestionTrueFalse, "")

	require.NoError(t, err)
	assert.Equal(t, "v1.0", tmpl.Version)
}

func TestPromptStore_Resolve_InvalidMetadata(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, domain.QuestionFlashcard, metadataFile, "active_version: [unclosed\n")
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Resolve(domain.QuestionFlashcard, "")

	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestPromptStore_Resolve_ExplicitVersion(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, domain.QuestionFlashcard, "v3.0.md", "s3\n---user---\nu3")
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	tmpl, err := store.Resolve(domain.QuestionFlashcard, "1.0")
	require.NoError(t, err)
	assert.Equal(t, "v1.0", tmpl.Version)

	_, err = store.Resolve(domain.QuestionFlashcard, "v7.0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPromptStore_Resolve_WithoutSeparatorKeepsBuiltinSystem(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, domain.QuestionMultipleChoice, "v1.1.md", "{{.Header}}\n{{.Sections}}")
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	tmpl, err := store.Resolve(domain.QuestionMultipleChoice, "v1.1")

	require.NoError(t, err)
	assert.Equal(t, "{{.Header}}\n{{.Sections}}", tmpl.User)
	assert.Contains(t, tmpl.System, "cuatro opciones")
}

func TestPromptStore_Resolve_EmptyUserTemplate(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, domain.QuestionCloze, "v1.1.md", "only system\n---user---\n   \n")
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	_, err = store.Resolve(domain.QuestionCloze, "v1.1")

	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestPromptStore_Resolve_InvalidType(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Resolve("essay", "")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPromptStore_Resolve_DoesNotOverwriteUserFiles(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, domain.QuestionFlashcard, "v1.0.md", "custom system\n---user---\ncustom {{.Sections}}")
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	tmpl, err := store.Resolve(domain.QuestionFlashcard, "")

	require.NoError(t, err)
	assert.Equal(t, "custom system", tmpl.System)
	assert.Equal(t, "custom {{.Sections}}", tmpl.User)
}

func TestPromptStore_Resolve_UnwritableDirFallsBackToBuiltin(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "prompts")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0600))
	store, err := NewPromptStore(blocker)
	require.NoError(t, err)

	tmpl, err := store.Resolve(domain.QuestionFlashcard, "")

	require.NoError(t, err)
	assert.Equal(t, "v1.0", tmpl.Version)
	assert.Contains(t, tmpl.User, "{{.Sections}}")
}

func TestPromptStore_Versions(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, domain.QuestionCloze, "v1.10.md", "u")
	writePrompt(t, dir, domain.QuestionCloze, "v1.2.md", "u")
	writePrompt(t, dir, domain.QuestionCloze, "notes.md", "ignored")
	writePrompt(t, dir, domain.QuestionCloze, "v2.md", "ignored")
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	versions, err := store.Versions(domain.QuestionCloze)

	require.NoError(t, err)
	assert.Equal(t, []string{"v1.0", "v1.2", "v1.10"}, versions)
}

func TestPromptStore_Reload(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, domain.QuestionFlashcard, "v1.1.md", "s\n---user---\nfirst")
	store, err := NewPromptStore(dir)
	require.NoError(t, err)

	tmpl, err := store.Resolve(domain.QuestionFlashcard, "v1.1")
	require.NoError(t, err)
	assert.Equal(t, "first", tmpl.User)

	writePrompt(t, dir, domain.QuestionFlashcard, "v1.1.md", "s\n---user---\nsecond")

	tmpl, err = store.Resolve(domain.QuestionFlashcard, "v1.1")
	require.NoError(t, err)
	assert.Equal(t, "first", tmpl.User, "cached until reload")

	store.Reload()

	tmpl, err = store.Resolve(domain.QuestionFlashcard, "v1.1")
	require.NoError(t, err)
	assert.Equal(t, "second", tmpl.User)
}

func TestPromptStore_Watch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	store, err := NewPromptStore(dir)
	require.NoError(t, err)
	_, err = store.Resolve(domain.QuestionCloze, "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()

	// Give the watcher time to register its directories.
	time.Sleep(100 * time.Millisecond)
	writePrompt(t, dir, domain.QuestionCloze, "v1.0.md", "s\n---user---\nedited {{.Sections}}")

	assert.Eventually(t, func() bool {
		tmpl, err := store.Resolve(domain.QuestionCloze, "")
		return err == nil && tmpl.User == "edited {{.Sections}}"
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestSplitTemplate(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		system    string
		user      string
		separated bool
	}{
		{"separated", "sys\n---user---\nuser", "sys", "user", true},
		{"crlf", "sys\r\n---user---\r\nuser\r\n", "sys", "user", true},
		{"indented separator", "sys\n  ---user---  \nuser", "sys", "user", true},
		{"no separator", "  user only  ", "", "user only", false},
		{"first separator only", "a\n---user---\nb\n---user---\nc", "a", "b\n---user---\nc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system, user, found := splitTemplate(tt.raw)
			assert.Equal(t, tt.system, system)
			assert.Equal(t, tt.user, user)
			assert.Equal(t, tt.separated, found)
		})
	}
}

func TestVersionLess(t *testing.T) {
	assert.True(t, versionLess("v1.2", "v1.10"))
	assert.True(t, versionLess("v1.10", "v2.0"))
	assert.False(t, versionLess("v2.0", "v2.0"))
	assert.Equal(t, "v1.0", normaliseVersion(" 1.0 "))
	assert.Equal(t, "v1.0", normaliseVersion("v1.0"))
}

func TestPromptStore_ConcurrentAccess(t *testing.T) {
	store, err := NewPromptStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			qtype := promptTypes[i%len(promptTypes)]
			_, err := store.Resolve(qtype, "")
			assert.NoError(t, err)
			if i%5 == 0 {
				store.Reload()
			}
		}(i)
	}
	wg.Wait()
}
