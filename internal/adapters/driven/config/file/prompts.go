package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/lexcards-cli/internal/adapters/driven/config/file/defaults"
	"github.com/custodia-labs/lexcards-cli/internal/core/domain"
	"github.com/custodia-labs/lexcards-cli/internal/core/ports/driven"
	"github.com/custodia-labs/lexcards-cli/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

const (
	// userSeparator splits the system prompt from the user template.
	userSeparator = "---user---"

	metadataFile = "metadata.yaml"
)

var versionFile = regexp.MustCompile(`^v(\d+)\.(\d+)\.md$`)

// promptTypes are the question types that ship with default templates.
var promptTypes = []domain.QuestionType{
	domain.QuestionFlashcard,
	domain.QuestionTrueFalse,
	domain.QuestionMultipleChoice,
	domain.QuestionCloze,
}

// PromptMetadata is the optional per-type metadata.yaml file.
type PromptMetadata struct {
	ActiveVersion string `yaml:"active_version"`
	Description   string `yaml:"description,omitempty"`
}

// PromptStore loads versioned prompt templates from user-editable files.
// Templates live under <dir>/<type>/v<major>.<minor>.md, with the built-in
// versions used for anything not on disk.
//
// The store initialises lazily: the directory and default files are only
// written on first access.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]driven.PromptTemplate
	initOnce  sync.Once
	initErr   error
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.lexcards/prompts/.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".lexcards", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]driven.PromptTemplate),
	}, nil
}

// Resolve returns the template for a question type and version. An empty
// version resolves to metadata.yaml's active_version, or the highest
// available version.
func (s *PromptStore) Resolve(qtype domain.QuestionType, version string) (driven.PromptTemplate, error) {
	if !qtype.IsValid() {
		return driven.PromptTemplate{}, fmt.Errorf("%w: question type %q", domain.ErrInvalidInput, qtype)
	}
	s.initOnce.Do(s.initialise)

	if version == "" {
		v, err := s.activeVersion(qtype)
		if err != nil {
			return driven.PromptTemplate{}, err
		}
		version = v
	}
	version = normaliseVersion(version)

	key := string(qtype) + "@" + version
	s.mu.RLock()
	if tmpl, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return tmpl, nil
	}
	s.mu.RUnlock()

	raw, err := s.read(qtype, version)
	if err != nil {
		return driven.PromptTemplate{}, err
	}
	tmpl, err := s.parse(qtype, version, raw)
	if err != nil {
		return driven.PromptTemplate{}, err
	}

	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		tmpl = cached
	} else {
		s.cache[key] = tmpl
	}
	s.mu.Unlock()

	return tmpl, nil
}

// Versions lists the versions available on disk or built in, ascending.
func (s *PromptStore) Versions(qtype domain.QuestionType) ([]string, error) {
	if !qtype.IsValid() {
		return nil, fmt.Errorf("%w: question type %q", domain.ErrInvalidInput, qtype)
	}
	s.initOnce.Do(s.initialise)

	seen := make(map[string]struct{})
	collect := func(entries []fs.DirEntry) {
		for _, e := range entries {
			if !e.IsDir() && versionFile.MatchString(e.Name()) {
				seen[strings.TrimSuffix(e.Name(), ".md")] = struct{}{}
			}
		}
	}

	if entries, err := fs.ReadDir(defaults.FS, string(qtype)); err == nil {
		collect(entries)
	}
	entries, err := os.ReadDir(filepath.Join(s.promptDir, string(qtype)))
	if err != nil && !s.missing(err) {
		return nil, fmt.Errorf("read prompt directory: %w", err)
	}
	collect(entries)

	versions := make([]string, 0, len(seen))
	for v := range seen {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versionLess(versions[i], versions[j]) })
	return versions, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]driven.PromptTemplate)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// Watch reloads the store whenever a file under the prompt directory
// changes. It blocks until ctx is cancelled.
func (s *PromptStore) Watch(ctx context.Context) error {
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		return s.initErr
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create prompt watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	err = filepath.WalkDir(s.promptDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch prompt directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if e.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
					_ = w.Add(e.Name)
				}
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				logger.Debug("prompt file changed: %s", e.Name)
				s.Reload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("prompt watcher error: %v", err)
		}
	}
}

// activeVersion picks the version an empty request resolves to.
func (s *PromptStore) activeVersion(qtype domain.QuestionType) (string, error) {
	versions, err := s.Versions(qtype)
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", fmt.Errorf("%w: no prompt versions for %s", domain.ErrNotFound, qtype)
	}

	meta, err := s.metadata(qtype)
	if err != nil {
		return "", err
	}
	if meta.ActiveVersion != "" {
		active := normaliseVersion(meta.ActiveVersion)
		for _, v := range versions {
			if v == active {
				return v, nil
			}
		}
		logger.Warn("active prompt version %s for %s not found, using %s", active, qtype, versions[len(versions)-1])
	}
	return versions[len(versions)-1], nil
}

// metadata reads the optional metadata.yaml for a type.
func (s *PromptStore) metadata(qtype domain.QuestionType) (PromptMetadata, error) {
	var meta PromptMetadata
	data, err := os.ReadFile(filepath.Join(s.promptDir, string(qtype), metadataFile))
	if err != nil && s.missing(err) {
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("read prompt metadata: %w", err)
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, domain.NewConfigurationError("prompts."+string(qtype), "invalid %s: %v", metadataFile, err)
	}
	return meta, nil
}

// missing reports whether a disk read error means "use the built-in
// copy": the file is absent or the prompt directory could not be set up.
func (s *PromptStore) missing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || s.initErr != nil
}

// read loads a template file from disk, falling back to the built-in copy.
func (s *PromptStore) read(qtype domain.QuestionType, version string) (string, error) {
	name := version + ".md"
	data, err := os.ReadFile(filepath.Join(s.promptDir, string(qtype), name))
	if err == nil {
		return string(data), nil
	}
	if !s.missing(err) {
		return "", fmt.Errorf("read prompt %s %s: %w", qtype, version, err)
	}

	data, err = fs.ReadFile(defaults.FS, string(qtype)+"/"+name)
	if err != nil {
		return "", fmt.Errorf("%w: prompt %s %s", domain.ErrNotFound, qtype, version)
	}
	return string(data), nil
}

// parse splits a template file into its system and user parts. A file
// without a separator is all user template and keeps the built-in system
// prompt.
func (s *PromptStore) parse(qtype domain.QuestionType, version, raw string) (driven.PromptTemplate, error) {
	tmpl := driven.PromptTemplate{QuestionType: qtype, Version: version}

	system, user, found := splitTemplate(raw)
	if !found {
		builtin, err := builtinSystem(qtype)
		if err != nil {
			return tmpl, err
		}
		system = builtin
	}
	if strings.TrimSpace(user) == "" {
		return tmpl, domain.NewConfigurationError("prompts."+string(qtype), "%s has an empty user template", version)
	}

	tmpl.System = system
	tmpl.User = user
	return tmpl, nil
}

// splitTemplate cuts raw at the first line that is exactly the separator.
func splitTemplate(raw string) (system, user string, found bool) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == userSeparator {
			return strings.TrimSpace(strings.Join(lines[:i], "\n")),
				strings.TrimSpace(strings.Join(lines[i+1:], "\n")), true
		}
	}
	return "", strings.TrimSpace(raw), false
}

// builtinSystem returns the system prompt of the highest built-in version.
func builtinSystem(qtype domain.QuestionType) (string, error) {
	entries, err := fs.ReadDir(defaults.FS, string(qtype))
	if err != nil || len(entries) == 0 {
		return "", fmt.Errorf("%w: built-in prompt for %s", domain.ErrNotFound, qtype)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	sort.Slice(names, func(i, j int) bool { return versionLess(names[i], names[j]) })

	data, err := fs.ReadFile(defaults.FS, string(qtype)+"/"+names[len(names)-1]+".md")
	if err != nil {
		return "", fmt.Errorf("read built-in prompt: %w", err)
	}
	system, _, _ := splitTemplate(string(data))
	return system, nil
}

// initialise creates the prompt directory and copies the built-in
// templates into it. Existing files are never overwritten.
func (s *PromptStore) initialise() {
	defer s.warnInit()
	for _, qtype := range promptTypes {
		dir := filepath.Join(s.promptDir, string(qtype))
		if err := os.MkdirAll(dir, 0700); err != nil {
			s.initErr = fmt.Errorf("create prompt directory: %w", err)
			return
		}

		entries, err := fs.ReadDir(defaults.FS, string(qtype))
		if err != nil {
			s.initErr = fmt.Errorf("read built-in prompts: %w", err)
			return
		}
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
				continue
			}
			data, err := fs.ReadFile(defaults.FS, string(qtype)+"/"+e.Name())
			if err != nil {
				s.initErr = fmt.Errorf("read built-in prompt %s: %w", e.Name(), err)
				return
			}
			if err := os.WriteFile(path, data, 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %s/%s: %w", qtype, e.Name(), err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// warnInit logs an initialisation failure once; reads fall back to the
// built-in templates.
func (s *PromptStore) warnInit() {
	if s.initErr != nil {
		logger.Warn("prompt directory unavailable, using built-in prompts: %v", s.initErr)
	}
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	content := `# Prompts de lexcards

Cada tipo de pregunta tiene su propio directorio:

- ` + "`flashcard/`" + `
- ` + "`true_false/`" + `
- ` + "`multiple_choice/`" + `
- ` + "`cloze/`" + `

## Versiones

Las plantillas se llaman ` + "`v<mayor>.<menor>.md`" + `. Para fijar una versión
crea ` + "`metadata.yaml`" + ` en el directorio del tipo:

    active_version: v1.1
    description: Preguntas más cortas

Sin ` + "`active_version`" + ` se usa la versión más alta.

## Formato

El texto antes de la línea ` + "`" + userSeparator + "`" + ` es el prompt de sistema.
Lo que sigue es una plantilla de Go con los campos:

- ` + "`{{.Header}}`" + ` contexto del documento
- ` + "`{{.Sections}}`" + ` secciones del lote
- ` + "`{{.Footer}}`" + ` instrucciones finales
- ` + "`{{.Count}}`" + `, ` + "`{{.TypeLabel}}`" + `, ` + "`{{.Constraints}}`" + `, ` + "`{{.DocumentID}}`" + `
`
	return os.WriteFile(path, []byte(content), 0600)
}

// normaliseVersion accepts "1.2" and "v1.2".
func normaliseVersion(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// versionLess orders "v<major>.<minor>" numerically.
func versionLess(a, b string) bool {
	am, an := versionParts(a)
	bm, bn := versionParts(b)
	if am != bm {
		return am < bm
	}
	return an < bn
}

func versionParts(v string) (int, int) {
	m := versionFile.FindStringSubmatch(v + ".md")
	if m == nil {
		return -1, -1
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	return major, minor
}
