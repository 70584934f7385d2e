// Package i18n localizes candidate-facing text from embedded message files.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Catalog resolves message ids for one display language.
type Catalog struct {
	tag       language.Tag
	localizer *goi18n.Localizer
	logger    *slog.Logger
}

// New loads every embedded locale and binds a localizer for lang. Unknown
// languages fall back to English.
func New(lang string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", entry.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, entry.Name()); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", entry.Name(), err)
		}
	}

	tag := Match(lang)
	return &Catalog{
		tag:       tag,
		localizer: goi18n.NewLocalizer(bundle, tag.String(), language.English.String()),
		logger:    logger,
	}, nil
}

// Supported lists the languages with embedded messages.
var Supported = []language.Tag{language.English, language.Spanish}

var matcher = language.NewMatcher(Supported)

// Match picks the closest supported language for raw.
func Match(raw string) language.Tag {
	if raw == "" {
		return language.English
	}
	_, index, confidence := matcher.Match(language.Make(raw))
	if confidence == language.No {
		return language.English
	}
	return Supported[index]
}

// Language reports the bound display language.
func (c *Catalog) Language() language.Tag {
	return c.tag
}

// T translates a message by id.
func (c *Catalog) T(id string) string {
	return c.localize(&goi18n.LocalizeConfig{MessageID: id})
}

// Td translates a message by id with template data.
func (c *Catalog) Td(id string, data map[string]any) string {
	return c.localize(&goi18n.LocalizeConfig{MessageID: id, TemplateData: data})
}

// Tp translates a pluralized message; Count is available to the template.
func (c *Catalog) Tp(id string, count int) string {
	return c.localize(&goi18n.LocalizeConfig{
		MessageID:    id,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}

func (c *Catalog) localize(cfg *goi18n.LocalizeConfig) string {
	s, err := c.localizer.Localize(cfg)
	if err != nil {
		c.logger.Warn("missing translation", "id", cfg.MessageID, "lang", c.tag.String(), "error", err)
		return cfg.MessageID
	}
	return s
}
