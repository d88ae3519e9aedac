// Package i18n translates user-facing messages. Catalogs are embedded JSON
// files, one per locale, with nested keys addressed as "errors.not_found".
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

//go:embed messages/*.json
var messagesFS embed.FS

// Supported locales
const (
	LocaleEnglish = "en"
	LocaleGerman  = "de"
	DefaultLocale = LocaleEnglish
)

// ResourceParam is the parameter whose value is itself translated through
// the "resources" table, so "batch" renders as "Charge" in German.
const ResourceParam = "resource"

type localeKey struct{}

// catalog maps a flattened key to its message
type catalog map[string]string

var (
	catalogs     map[string]catalog
	catalogsOnce sync.Once
)

func loadCatalogs() map[string]catalog {
	catalogsOnce.Do(func() {
		catalogs = make(map[string]catalog, 2)
		for _, locale := range []string{LocaleEnglish, LocaleGerman} {
			c, err := readCatalog(locale)
			if err != nil {
				panic(err)
			}
			catalogs[locale] = c
		}
	})
	return catalogs
}

func readCatalog(locale string) (catalog, error) {
	data, err := messagesFS.ReadFile("messages/" + locale + ".json")
	if err != nil {
		return nil, fmt.Errorf("i18n: read %s catalog: %w", locale, err)
	}

	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("i18n: parse %s catalog: %w", locale, err)
	}

	c := make(catalog)
	flatten(c, "", tree)
	return c, nil
}

func flatten(c catalog, prefix string, tree map[string]any) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := v.(type) {
		case string:
			c[key] = v
		case map[string]any:
			flatten(c, key, v)
		}
	}
}

// Localizer translates into one locale, falling back to English.
type Localizer struct {
	locale string
}

// NewLocalizer creates a localizer; unsupported locales get the default.
func NewLocalizer(locale string) *Localizer {
	if !isSupported(locale) {
		locale = DefaultLocale
	}
	return &Localizer{locale: locale}
}

// FromContext creates a localizer for the locale stored in ctx
func FromContext(ctx context.Context) *Localizer {
	return NewLocalizer(LocaleFromContext(ctx))
}

// Locale returns the localizer's locale
func (l *Localizer) Locale() string {
	return l.locale
}

// T translates key and substitutes {name} placeholders from params. A key
// missing from both catalogs is returned unchanged.
func (l *Localizer) T(key string, params ...map[string]string) string {
	msg, ok := l.lookup(key)
	if !ok {
		return key
	}
	if len(params) == 0 {
		return msg
	}

	for name, value := range params[0] {
		if name == ResourceParam {
			value = l.Resource(value)
		}
		msg = strings.ReplaceAll(msg, "{"+name+"}", value)
	}
	return msg
}

// Resource translates a resource name such as "item" or "batch"
func (l *Localizer) Resource(name string) string {
	if msg, ok := l.lookup("resources." + name); ok {
		return msg
	}
	return name
}

func (l *Localizer) lookup(key string) (string, bool) {
	all := loadCatalogs()
	if msg, ok := all[l.locale][key]; ok {
		return msg, true
	}
	msg, ok := all[DefaultLocale][key]
	return msg, ok
}

// WithLocale adds locale to context
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// LocaleFromContext retrieves the locale from context
func LocaleFromContext(ctx context.Context) string {
	if locale, ok := ctx.Value(localeKey{}).(string); ok && locale != "" {
		return locale
	}
	return DefaultLocale
}

// ParseAcceptLanguage returns the supported locale with the highest quality
// in an Accept-Language header. Ties keep header order.
func ParseAcceptLanguage(header string) string {
	type candidate struct {
		locale  string
		quality float64
	}

	var candidates []candidate
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(part, ";")
		primary := strings.ToLower(strings.SplitN(strings.TrimSpace(fields[0]), "-", 2)[0])
		if !isSupported(primary) {
			continue
		}

		quality := 1.0
		for _, param := range fields[1:] {
			param = strings.TrimSpace(param)
			if q, ok := strings.CutPrefix(param, "q="); ok {
				if v, err := strconv.ParseFloat(q, 64); err == nil {
					quality = v
				}
			}
		}
		if quality > 0 {
			candidates = append(candidates, candidate{primary, quality})
		}
	}

	if len(candidates) == 0 {
		return DefaultLocale
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].quality > candidates[j].quality })
	return candidates[0].locale
}

func isSupported(locale string) bool {
	return locale == LocaleEnglish || locale == LocaleGerman
}

// T translates using the default locale
func T(key string, params ...map[string]string) string {
	return NewLocalizer(DefaultLocale).T(key, params...)
}

// TWithLocale translates using the specified locale
func TWithLocale(locale, key string, params ...map[string]string) string {
	return NewLocalizer(locale).T(key, params...)
}

// TFromContext translates using the locale from context
func TFromContext(ctx context.Context, key string, params ...map[string]string) string {
	return FromContext(ctx).T(key, params...)
}
