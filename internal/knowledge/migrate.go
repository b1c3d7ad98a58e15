package knowledge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/appscout/internal/analyzer"
	"github.com/nao1215/appscout/internal/model"
)

// schemaHeader reads only the schema version of a document.
type schemaHeader struct {
	SchemaVersion *int `json:"schemaVersion"`
}

// legacyKnowledge is the schema 0 document: no schemaVersion, pages either
// flat or grouped under "<category>Pages" keys, optional version.
type legacyKnowledge struct {
	AppName       string               `json:"appName"`
	Name          string               `json:"name"`
	BaseURL       string               `json:"baseUrl"`
	URL           string               `json:"url"`
	Version       string               `json:"version"`
	CreatedAt     string               `json:"createdAt"`
	UpdatedAt     string               `json:"updatedAt"`
	Pages         json.RawMessage      `json:"pages"`
	Forms         []model.FormRecord   `json:"forms"`
	Navigation    []model.NavEntry     `json:"navigation"`
	UserFlows     []model.Flow         `json:"userFlows"`
	Flows         []model.Flow         `json:"flows"`
	TestScenarios []model.TestScenario `json:"testScenarios"`
	Scenarios     []model.TestScenario `json:"scenarios"`
	Framework     string               `json:"framework"`
	UpdateHistory []model.UpdateEntry  `json:"updateHistory"`
	RemovedForms  []string             `json:"removedForms"`
}

// Migrate decodes a stored knowledge document of any known schema version
// and upgrades it to the current shape. A document that is not a JSON
// object, or that names neither the application nor its base URL, is
// malformed.
func Migrate(raw []byte) (*model.AppKnowledge, error) {
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedKnowledge)
	}

	var header schemaHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKnowledge, err)
	}

	version := 0
	if header.SchemaVersion != nil {
		version = *header.SchemaVersion
	}

	var (
		k   *model.AppKnowledge
		err error
	)
	switch {
	case version > model.CurrentSchemaVersion || version < 0:
		return nil, fmt.Errorf("%w: %d (this release reads up to %d)",
			ErrUnsupportedSchema, version, model.CurrentSchemaVersion)
	case version == 0:
		k, err = migrateV0(raw)
	default:
		k = &model.AppKnowledge{}
		if err = json.Unmarshal(raw, k); err != nil {
			err = fmt.Errorf("%w: %w", ErrMalformedKnowledge, err)
		}
	}
	if err != nil {
		return nil, err
	}

	if k.AppName == "" && k.BaseURL == "" {
		return nil, fmt.Errorf("%w: no application name or base URL", ErrMalformedKnowledge)
	}
	Normalize(k)
	return k, nil
}

func migrateV0(raw []byte) (*model.AppKnowledge, error) {
	var legacy legacyKnowledge
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKnowledge, err)
	}

	pages, err := legacyPages(legacy.Pages, legacy.Forms)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedKnowledge, err)
	}

	k := &model.AppKnowledge{
		SchemaVersion: model.CurrentSchemaVersion,
		AppName:       firstNonEmpty(legacy.AppName, legacy.Name),
		BaseURL:       firstNonEmpty(legacy.BaseURL, legacy.URL),
		Version:       legacyVersion(legacy.Version),
		CreatedAt:     parseTime(legacy.CreatedAt),
		UpdatedAt:     parseTime(legacy.UpdatedAt),
		Pages:         pages,
		Forms:         legacy.Forms,
		Navigation:    legacy.Navigation,
		UserFlows:     legacy.UserFlows,
		TestScenarios: legacy.TestScenarios,
		Framework:     legacy.Framework,
		UpdateHistory: legacy.UpdateHistory,
		RemovedForms:  legacy.RemovedForms,
	}
	if k.UserFlows == nil {
		k.UserFlows = legacy.Flows
	}
	if k.TestScenarios == nil {
		k.TestScenarios = legacy.Scenarios
	}
	if k.UpdatedAt.IsZero() {
		k.UpdatedAt = k.CreatedAt
	}
	k.Statistics = analyzer.Statistics(k.Pages.All(), k.Forms, k.UserFlows, k.TestScenarios)
	return k, nil
}

// legacyPages decodes a flat page array or a map of grouped pages.
func legacyPages(raw json.RawMessage, forms []model.FormRecord) (model.PageGroups, error) {
	var groups model.PageGroups
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return groups, nil
	}

	if trimmed[0] == '[' {
		var flat []model.PageRecord
		if err := json.Unmarshal(trimmed, &flat); err != nil {
			return groups, err
		}
		for _, p := range flat {
			if p.PageType == "" {
				p.PageType = analyzer.ClassifyPage(analyzer.SignalsOf(p))
			}
			if p.PageName == "" {
				p.PageName = analyzer.PageName(p.Path, p.Title)
			}
			groups.Add(analyzer.Categorize(p, forms), p)
		}
		return groups, nil
	}

	var grouped map[string][]model.PageRecord
	if err := json.Unmarshal(trimmed, &grouped); err != nil {
		return groups, err
	}
	// Map order is random; walk categories in order for a stable result.
	byCategory := make(map[model.PageCategory][]model.PageRecord)
	for key, pages := range grouped {
		c := legacyCategory(key)
		byCategory[c] = append(byCategory[c], pages...)
	}
	for _, c := range model.Categories() {
		for _, p := range byCategory[c] {
			groups.Add(c, p)
		}
	}
	return groups, nil
}

// legacyCategory maps "authPages", "formPages", "auth" and similar keys to
// a category. Unknown keys map to CategoryOther.
func legacyCategory(key string) model.PageCategory {
	k := strings.TrimSuffix(strings.ToLower(key), "pages")
	switch k {
	case "auth", "authentication":
		return model.CategoryAuth
	case "list", "lists":
		return model.CategoryList
	case "detail", "details":
		return model.CategoryDetail
	case "content", "contents":
		return model.CategoryContent
	case "form", "forms":
		return model.CategoryForms
	default:
		return model.CategoryOther
	}
}

// legacyVersion accepts "1.2" as "1.2.0" and an absent version as the
// initial one. Anything else is kept as is and rejected at merge time.
func legacyVersion(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	switch strings.Count(v, ".") {
	case 0:
		if v == "" {
			return InitialVersion
		}
		v += ".0.0"
	case 1:
		v += ".0"
	}
	if parsed, err := ParseVersion(v); err == nil {
		return parsed.String()
	}
	return v
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
