package browser

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/appscout/internal/model"
)

// HTML element name constants for form field detection.
const (
	htmlElementInput    = "input"
	htmlElementSelect   = "select"
	htmlElementTextarea = "textarea"
	htmlElementButton   = "button"
)

// maxBodyText bounds the body text kept in DOMFacts, in runes.
const maxBodyText = 5000

// domParser extracts DOMFacts from static HTML.
//
// Design decision: We use golang.org/x/net/html for parsing rather than
// regex because:
//  1. It correctly handles malformed HTML common on the web
//  2. Provides a proper DOM-like structure
//  3. Label association needs the tree (wrapping labels, for= references)
type domParser struct {
	baseURL *url.URL

	// labels maps element ids to the text of <label for=id>.
	labels map[string]string

	facts *DOMFacts
	body  strings.Builder
	sawH1 bool
}

// ParseDOM parses HTML content and returns its DOM facts.
// Relative links and form actions are resolved against baseURL.
func ParseDOM(content io.Reader, baseURL string) (*DOMFacts, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	p := &domParser{
		baseURL: base,
		labels:  make(map[string]string),
		facts: &DOMFacts{
			Forms:      make([]FormFacts, 0),
			Buttons:    make([]ElementFacts, 0),
			Clickables: make([]ElementFacts, 0),
			Links:      make([]string, 0),
			Hints:      make([]string, 0),
		},
	}

	p.collectLabels(doc)
	p.walk(doc, false)

	p.facts.BodyText = model.TruncateRunes(strings.Join(strings.Fields(p.body.String()), " "), maxBodyText)

	return p.facts, nil
}

// collectLabels records the text of every <label for="...">.
func (p *domParser) collectLabels(n *html.Node) {
	if n.Type == html.ElementNode && n.Data == "label" {
		if id := getAttr(n, "for"); id != "" {
			p.labels[id] = nodeText(n)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.collectLabels(c)
	}
}

// walk visits the tree. inForm is true below a <form> element.
func (p *domParser) walk(n *html.Node, inForm bool) {
	switch n.Type {
	case html.TextNode:
		if inBody(n) {
			p.body.WriteString(n.Data)
			p.body.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template":
			p.processElement(n, inForm)
			return
		case "form":
			if !inForm {
				p.facts.Forms = append(p.facts.Forms, p.parseForm(n))
			}
			inForm = true
		default:
			p.processElement(n, inForm)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c, inForm)
	}
}

// processElement handles element nodes outside the form logic.
func (p *domParser) processElement(n *html.Node, inForm bool) {
	switch n.Data {
	case "title":
		if p.facts.Title == "" {
			p.facts.Title = nodeText(n)
		}

	case "h1":
		if text := nodeText(n); text != "" && !p.sawH1 {
			p.facts.Heading = text
			p.sawH1 = true
		}

	case "h2", "h3":
		if p.facts.Heading == "" {
			p.facts.Heading = nodeText(n)
		}

	case "meta":
		name := strings.ToLower(getAttr(n, "name"))
		if name == "" {
			name = strings.ToLower(getAttr(n, "property"))
		}
		content := getAttr(n, "content")
		switch name {
		case "description", "og:description":
			if p.facts.Description == "" {
				p.facts.Description = strings.TrimSpace(content)
			}
		case "generator":
			p.addHint(content)
		}

	case "a":
		if href := getAttr(n, "href"); href != "" {
			if resolved := p.resolveURL(href); resolved != "" {
				p.facts.Links = append(p.facts.Links, resolved)
			}
		} else if !inForm && isClickable(n) {
			p.facts.Clickables = append(p.facts.Clickables, elementFacts(n))
		}
		return

	case "script":
		if src := getAttr(n, "src"); src != "" {
			p.addHint(src)
		}
		return

	case htmlElementButton:
		if !inForm {
			p.facts.Buttons = append(p.facts.Buttons, elementFacts(n))
		}
		return
	}

	if getAttr(n, "id") == "__next" {
		p.addHint("next.js")
	}
	for _, attr := range n.Attr {
		switch {
		case attr.Key == "data-reactroot":
			p.addHint("react")
		case attr.Key == "ng-version":
			p.addHint("angular " + attr.Val)
		case strings.HasPrefix(attr.Key, "data-v-"):
			p.addHint("vue")
		}
	}

	if !inForm && isClickable(n) {
		p.facts.Clickables = append(p.facts.Clickables, elementFacts(n))
	}
}

// parseForm extracts the fields and buttons of a form element.
func (p *domParser) parseForm(n *html.Node) FormFacts {
	form := FormFacts{
		Method:  strings.ToUpper(getAttr(n, "method")),
		Fields:  make([]FieldFacts, 0),
		Buttons: make([]ButtonFacts, 0),
	}
	if action, ok := lookupAttr(n, "action"); ok {
		form.Action = p.resolveURL(action)
		if form.Action == "" {
			form.Action = p.baseURL.String()
		}
	}
	if form.Method == "" {
		form.Method = "GET"
	}
	p.extractFormControls(n, &form)
	return form
}

// extractFormControls recursively extracts fields and buttons of a form.
func (p *domParser) extractFormControls(n *html.Node, form *FormFacts) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case htmlElementInput, htmlElementSelect, htmlElementTextarea:
			field := p.parseField(n)
			switch field.Type {
			case "submit", "button", "reset", "image":
				form.Buttons = append(form.Buttons, ButtonFacts{
					Text: firstNonEmpty(field.Value, getAttr(n, "alt"), field.Type),
					Type: field.Type,
				})
			default:
				form.Fields = append(form.Fields, field)
			}
		case htmlElementButton:
			typ := strings.ToLower(getAttr(n, "type"))
			if typ == "" {
				typ = "submit"
			}
			form.Buttons = append(form.Buttons, ButtonFacts{
				Text: firstNonEmpty(nodeText(n), getAttr(n, "aria-label"), getAttr(n, "value")),
				Type: typ,
			})
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.extractFormControls(c, form)
	}
}

// parseField builds FieldFacts for an input, select or textarea.
func (p *domParser) parseField(n *html.Node) FieldFacts {
	_, required := lookupAttr(n, "required")
	field := FieldFacts{
		Tag:         n.Data,
		Type:        strings.ToLower(getAttr(n, "type")),
		Name:        getAttr(n, "name"),
		ID:          getAttr(n, "id"),
		Placeholder: getAttr(n, "placeholder"),
		Required:    required,
		Value:       getAttr(n, "value"),
	}
	if field.Type == "" {
		switch n.Data {
		case htmlElementTextarea:
			field.Type = htmlElementTextarea
		case htmlElementSelect:
			field.Type = htmlElementSelect
		default:
			field.Type = "text"
		}
	}

	switch {
	case field.ID != "" && p.labels[field.ID] != "":
		field.Label = p.labels[field.ID]
	case wrappingLabel(n) != "":
		field.Label = wrappingLabel(n)
	default:
		field.Label = getAttr(n, "aria-label")
	}
	return field
}

// resolveURL resolves href against the base URL. Script, mail, phone and
// data URLs resolve to "".
func (p *domParser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.baseURL.ResolveReference(u).String()
}

func (p *domParser) addHint(hint string) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return
	}
	for _, h := range p.facts.Hints {
		if h == hint {
			return
		}
	}
	p.facts.Hints = append(p.facts.Hints, hint)
}

// isClickable reports whether n exposes an explicit click affordance.
func isClickable(n *html.Node) bool {
	if _, ok := lookupAttr(n, "onclick"); ok {
		return true
	}
	if _, ok := lookupAttr(n, "data-action"); ok {
		return true
	}
	return strings.EqualFold(getAttr(n, "role"), "button")
}

func elementFacts(n *html.Node) ElementFacts {
	return ElementFacts{
		Text:    firstNonEmpty(nodeText(n), getAttr(n, "aria-label"), getAttr(n, "title")),
		ID:      getAttr(n, "id"),
		Classes: strings.Join(strings.Fields(getAttr(n, "class")), " "),
	}
}

// inBody reports whether a text node is inside <body> and not inside a
// non-rendered element.
func inBody(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		switch p.Data {
		case "script", "style", "noscript", "template", "title", "head":
			return false
		case "body":
			return true
		}
	}
	return false
}

// wrappingLabel returns the text of the <label> enclosing n, if any.
func wrappingLabel(n *html.Node) string {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			if p.Data == "label" {
				return nodeText(p)
			}
			if p.Data == "form" {
				return ""
			}
		}
	}
	return ""
}

// nodeText returns the whitespace-collapsed text below n.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
			sb.WriteString(" ")
		}
		if c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style") {
			return
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			collect(cc)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

// lookupAttr retrieves an attribute and whether it is present.
func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
