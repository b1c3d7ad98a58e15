package analyzer

import (
	"regexp"
	"strings"

	"github.com/nao1215/appscout/internal/model"
)

// FrameworkUnknown is returned when no framework marker is found.
const FrameworkUnknown = "unknown"

func marker(pattern string) func(string) bool {
	re := regexp.MustCompile(`(?i)` + pattern)
	return re.MatchString
}

type frameworkRule = Rule[string, string]

// frameworkRules run over the aggregated page text and hints. Meta
// frameworks come before the libraries they are built on.
var frameworkRules = NewRuleSet(FrameworkUnknown,
	frameworkRule{Name: "next", Match: marker(`__next|_next/static|\bnext\.js\b`), Result: "Next.js"},
	frameworkRule{Name: "nuxt", Match: marker(`__nuxt|_nuxt/|\bnuxt\b`), Result: "Nuxt"},
	frameworkRule{Name: "react", Match: marker(`data-reactroot|react-dom|\breact\b`), Result: "React"},
	frameworkRule{Name: "vue", Match: marker(`data-v-|\bvue(?:\.js)?\b`), Result: "Vue"},
	frameworkRule{Name: "angular", Match: marker(`ng-version|\bangular\b`), Result: "Angular"},
	frameworkRule{Name: "svelte", Match: marker(`\bsvelte`), Result: "Svelte"},
	frameworkRule{Name: "gatsby", Match: marker(`\bgatsby\b|___gatsby`), Result: "Gatsby"},
	frameworkRule{Name: "remix", Match: marker(`__remix|\bremix\b`), Result: "Remix"},
	frameworkRule{Name: "ember", Match: marker(`\bember(?:\.js)?\b|ember-application`), Result: "Ember"},
	frameworkRule{Name: "django", Match: marker(`\bdjango\b|csrfmiddlewaretoken`), Result: "Django"},
	frameworkRule{Name: "rails", Match: marker(`\brails\b|\bturbolinks\b|data-turbo`), Result: "Rails"},
	frameworkRule{Name: "laravel", Match: marker(`\blaravel\b`), Result: "Laravel"},
	frameworkRule{Name: "wordpress", Match: marker(`\bwordpress\b|wp-content|wp-includes`), Result: "WordPress"},
)

// DetectFramework sniffs the pages for framework markers. It returns
// FrameworkUnknown rather than guessing.
func DetectFramework(pages []model.PageRecord) string {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(p.Title)
		sb.WriteByte('\n')
		sb.WriteString(p.ContentPreview)
		sb.WriteByte('\n')
		sb.WriteString(p.BodyText)
		sb.WriteByte('\n')
		for _, h := range p.Hints {
			sb.WriteString(h)
			sb.WriteByte('\n')
		}
	}
	name, _ := frameworkRules.Evaluate(sb.String())
	return name
}
