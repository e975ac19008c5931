// internal/i18n/i18n.go
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed locales/*.json
var localeFS embed.FS

const DefaultLang = "pl"

type I18n struct {
	mu           sync.RWMutex
	translations map[string]map[string]string
	defaultLang  string
}

var (
	instance *I18n
	once     sync.Once
	loadErr  error
)

// Initialize loads the embedded locales. It is safe to call more than once;
// T loads them lazily as well.
func Initialize(defaultLang string) error {
	load()
	if loadErr == nil && defaultLang != "" {
		instance.mu.Lock()
		if _, ok := instance.translations[defaultLang]; ok {
			instance.defaultLang = defaultLang
		}
		instance.mu.Unlock()
	}
	return loadErr
}

func load() {
	once.Do(func() {
		instance = &I18n{
			translations: make(map[string]map[string]string),
			defaultLang:  DefaultLang,
		}
		loadErr = instance.LoadTranslations(localeFS, "locales")
	})
}

func (i *I18n) LoadTranslations(fsys embed.FS, dir string) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list locales: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		lang := strings.TrimSuffix(entry.Name(), ".json")
		filePath := path.Join(dir, entry.Name())

		data, err := fsys.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read locale file %s: %w", filePath, err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return fmt.Errorf("failed to unmarshal locale file %s: %w", filePath, err)
		}

		i.mu.Lock()
		i.translations[lang] = translations
		i.mu.Unlock()
	}

	return nil
}

func (i *I18n) T(lang, key string, args ...interface{}) string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	// Try to get translation for requested language
	if translations, exists := i.translations[lang]; exists {
		if text, exists := translations[key]; exists {
			return format(text, args)
		}
	}

	// Fallback to default language
	if lang != i.defaultLang {
		if translations, exists := i.translations[i.defaultLang]; exists {
			if text, exists := translations[key]; exists {
				return format(text, args)
			}
		}
	}

	// Return key if no translation found
	return key
}

func (i *I18n) Has(lang string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.translations[lang]
	return ok
}

func format(text string, args []interface{}) string {
	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}

// Global functions
func T(lang, key string, args ...interface{}) string {
	load()
	return instance.T(lang, key, args...)
}

// Default returns the language used when a request names none we support.
func Default() string {
	load()
	instance.mu.RLock()
	defer instance.mu.RUnlock()
	return instance.defaultLang
}

// Supported reports whether lang has a locale file.
func Supported(lang string) bool {
	load()
	return instance.Has(lang)
}

func GetSupportedLanguages() []string {
	load()

	instance.mu.RLock()
	defer instance.mu.RUnlock()

	langs := make([]string, 0, len(instance.translations))
	for lang := range instance.translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// StatusLabel returns the human readable project status.
func StatusLabel(lang, status string) string {
	key := "status." + status
	if label := T(lang, key); label != key {
		return label
	}
	return status
}
