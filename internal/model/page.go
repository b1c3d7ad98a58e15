package model

// PageType is the semantic type assigned to a page by the classifier.
type PageType string

const (
	// PageTypeLogin is a sign-in page.
	PageTypeLogin PageType = "login"
	// PageTypeSignup is a registration page.
	PageTypeSignup PageType = "signup"
	// PageTypeDashboard is the landing page after authentication.
	PageTypeDashboard PageType = "dashboard"
	// PageTypeProfile is a user profile or account page.
	PageTypeProfile PageType = "profile"
	// PageTypeContact is a contact page.
	PageTypeContact PageType = "contact"
	// PageTypeAbout is an about page.
	PageTypeAbout PageType = "about"
	// PageTypeHomepage is the root page of the application.
	PageTypeHomepage PageType = "homepage"
	// PageTypeDetail shows a single item.
	PageTypeDetail PageType = "detail"
	// PageTypeList shows a collection of items.
	PageTypeList PageType = "list"
	// PageTypeGeneric is any page no rule matched.
	PageTypeGeneric PageType = "page"
)

// PageCategory is the group a page is stored under in AppKnowledge.
type PageCategory string

const (
	// CategoryAuth holds login and signup pages.
	CategoryAuth PageCategory = "auth"
	// CategoryList holds list pages.
	CategoryList PageCategory = "list"
	// CategoryDetail holds detail pages.
	CategoryDetail PageCategory = "detail"
	// CategoryContent holds generic content pages.
	CategoryContent PageCategory = "content"
	// CategoryForms holds pages that own at least one form.
	CategoryForms PageCategory = "forms"
	// CategoryOther holds everything else.
	CategoryOther PageCategory = "other"
)

// Categories returns every category in bucketing priority order.
func Categories() []PageCategory {
	return []PageCategory{
		CategoryAuth,
		CategoryList,
		CategoryDetail,
		CategoryContent,
		CategoryForms,
		CategoryOther,
	}
}

// PageRecord is the normalized record of one successfully loaded page.
// PageName and PageType are derived and may be recomputed on re-exploration.
type PageRecord struct {
	// URL is the normalized absolute URL the page was loaded from.
	URL string `json:"url"`

	// Path is the URL path, used as the page identity across runs.
	Path string `json:"path"`

	// PageName is a human-readable name derived from the path or title.
	PageName string `json:"pageName"`

	// PageType is the semantic type assigned by the classifier.
	PageType PageType `json:"pageType"`

	Title       string `json:"title,omitempty"`
	Heading     string `json:"heading,omitempty"`
	Description string `json:"description,omitempty"`

	// ContentPreview is a bounded prefix of the visible body text.
	ContentPreview string `json:"contentPreview,omitempty"`

	// Depth is the number of link hops from the start URL.
	Depth int `json:"depth"`

	// CustomData is operator-supplied data preserved across merges.
	CustomData map[string]any `json:"customData,omitempty"`

	// BodyText is a larger bounded prefix of the body text. It is a
	// classification signal only and is never persisted.
	BodyText string `json:"-"`

	// Hints carries generator meta and script sources for framework detection.
	Hints []string `json:"-"`
}

// ElementRecord is an interactive element found outside of forms.
// The list per page is a capped sample, not an inventory.
type ElementRecord struct {
	// Type is "button" or "clickable".
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	ID      string `json:"id,omitempty"`
	Classes string `json:"classes,omitempty"`
}

const (
	// ElementButton is a button outside of any form.
	ElementButton = "button"
	// ElementClickable is an element with an explicit click affordance.
	ElementClickable = "clickable"
)

// PageGroups holds pages grouped by category.
type PageGroups struct {
	Auth    []PageRecord `json:"auth"`
	List    []PageRecord `json:"list"`
	Detail  []PageRecord `json:"detail"`
	Content []PageRecord `json:"content"`
	Forms   []PageRecord `json:"forms"`
	Other   []PageRecord `json:"other"`
}

// Get returns the pages stored under the given category.
func (g *PageGroups) Get(c PageCategory) []PageRecord {
	if p := g.slot(c); p != nil {
		return *p
	}
	return nil
}

// Add appends a page to the given category.
// Unknown categories are stored under CategoryOther.
func (g *PageGroups) Add(c PageCategory, page PageRecord) {
	p := g.slot(c)
	if p == nil {
		p = &g.Other
	}
	*p = append(*p, page)
}

// All returns every page in category order.
func (g *PageGroups) All() []PageRecord {
	all := make([]PageRecord, 0, g.Len())
	for _, c := range Categories() {
		all = append(all, g.Get(c)...)
	}
	return all
}

// Len returns the total number of pages.
func (g *PageGroups) Len() int {
	return len(g.Auth) + len(g.List) + len(g.Detail) +
		len(g.Content) + len(g.Forms) + len(g.Other)
}

// Normalize replaces nil slices with empty ones so the JSON form always
// carries every category.
func (g *PageGroups) Normalize() {
	for _, c := range Categories() {
		if p := g.slot(c); *p == nil {
			*p = []PageRecord{}
		}
	}
}

func (g *PageGroups) slot(c PageCategory) *[]PageRecord {
	switch c {
	case CategoryAuth:
		return &g.Auth
	case CategoryList:
		return &g.List
	case CategoryDetail:
		return &g.Detail
	case CategoryContent:
		return &g.Content
	case CategoryForms:
		return &g.Forms
	case CategoryOther:
		return &g.Other
	default:
		return nil
	}
}
