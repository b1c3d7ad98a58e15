package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/appscout/internal/browser"
	"github.com/nao1215/appscout/internal/model"
)

const (
	// ContentPreviewLimit caps PageRecord.ContentPreview in runes.
	ContentPreviewLimit = 500
	// BodyTextLimit caps PageRecord.BodyText in runes.
	BodyTextLimit = 2000

	elementTextLimit = 100
)

// PageResult is what the extractor reads from one loaded page.
type PageResult struct {
	Page     model.PageRecord
	Forms    []model.FormRecord
	Elements []model.ElementRecord

	// Links are absolute, deduplicated and limited to web schemes.
	Links []string
}

// Extractor turns a loaded page into records.
// PageName and PageType are left empty for the classifier.
type Extractor struct {
	settleDelay time.Duration
	elementCap  int
}

// NewExtractor creates an extractor. A negative element cap means no cap.
func NewExtractor(settleDelay time.Duration, elementCap int) *Extractor {
	return &Extractor{settleDelay: settleDelay, elementCap: elementCap}
}

// Extract waits for the settle delay, reads the DOM and builds the records.
func (x *Extractor) Extract(ctx context.Context, page browser.Page, depth int) (*PageResult, error) {
	if x.settleDelay > 0 {
		timer := time.NewTimer(x.settleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	facts, err := page.QueryDOM(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query DOM: %w", err)
	}

	pageURL := NormalizeURL(page.URL())
	body := model.CollapseSpace(facts.BodyText)

	result := &PageResult{
		Page: model.PageRecord{
			URL:            pageURL,
			Path:           pathOf(pageURL),
			Title:          model.CollapseSpace(facts.Title),
			Heading:        model.CollapseSpace(facts.Heading),
			Description:    model.CollapseSpace(facts.Description),
			ContentPreview: model.TruncateRunes(body, ContentPreviewLimit),
			Depth:          depth,
			BodyText:       model.TruncateRunes(body, BodyTextLimit),
			Hints:          facts.Hints,
		},
		Forms:    make([]model.FormRecord, 0, len(facts.Forms)),
		Elements: x.elements(facts),
		Links:    cleanLinks(facts.Links),
	}

	for i, ff := range facts.Forms {
		result.Forms = append(result.Forms, formRecord(i, pageURL, ff))
	}
	return result, nil
}

func (x *Extractor) elements(facts *browser.DOMFacts) []model.ElementRecord {
	elements := make([]model.ElementRecord, 0, len(facts.Buttons)+len(facts.Clickables))
	add := func(kind string, list []browser.ElementFacts) {
		for _, e := range list {
			if x.elementCap >= 0 && len(elements) >= x.elementCap {
				return
			}
			elements = append(elements, model.ElementRecord{
				Type:    kind,
				Text:    model.TruncateRunes(model.CollapseSpace(e.Text), elementTextLimit),
				ID:      e.ID,
				Classes: model.CollapseSpace(e.Classes),
			})
		}
	}
	add(model.ElementButton, facts.Buttons)
	add(model.ElementClickable, facts.Clickables)
	return elements
}

func formRecord(index int, pageURL string, ff browser.FormFacts) model.FormRecord {
	method := strings.ToUpper(strings.TrimSpace(ff.Method))
	if method == "" {
		method = "GET"
	}
	action := ff.Action
	if action == "" {
		action = pageURL
	}

	form := model.FormRecord{
		FormIndex:         index,
		PageURL:           pageURL,
		ActionURL:         action,
		Method:            method,
		Fields:            make([]model.FieldRecord, 0, len(ff.Fields)),
		Buttons:           make([]model.ButtonRecord, 0, len(ff.Buttons)),
		GeneratedTestData: map[string]string{},
	}
	for _, f := range ff.Fields {
		field := model.FieldRecord{
			Type:        fieldType(f),
			Name:        f.Name,
			ID:          f.ID,
			Placeholder: model.CollapseSpace(f.Placeholder),
			Required:    f.Required,
			Label:       model.CollapseSpace(f.Label),
		}
		if field.IsFillable() {
			form.FieldCount++
		}
		form.Fields = append(form.Fields, field)
	}
	for _, b := range ff.Buttons {
		form.Buttons = append(form.Buttons, model.ButtonRecord{
			Text: model.CollapseSpace(b.Text),
			Type: strings.ToLower(b.Type),
		})
	}
	return form
}

// fieldType returns the input type, or the tag for select and textarea.
func fieldType(f browser.FieldFacts) string {
	tag := strings.ToLower(f.Tag)
	if tag == "select" || tag == "textarea" {
		return tag
	}
	if t := strings.ToLower(strings.TrimSpace(f.Type)); t != "" {
		return t
	}
	return "text"
}

// cleanLinks drops non-web schemes and duplicates.
func cleanLinks(links []string) []string {
	out := make([]string, 0, len(links))
	seen := make(map[string]bool, len(links))
	for _, link := range links {
		link = strings.TrimSpace(link)
		lower := strings.ToLower(link)
		if link == "" || strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") ||
			strings.HasPrefix(lower, "tel:") || strings.HasPrefix(lower, "data:") {
			continue
		}
		if seen[link] {
			continue
		}
		seen[link] = true
		out = append(out, link)
	}
	return out
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
