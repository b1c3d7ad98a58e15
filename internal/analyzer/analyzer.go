package analyzer

import (
	"github.com/nao1215/appscout/internal/model"
)

// Analyze classifies an exploration and synthesizes flows, scenarios and
// statistics. The exploration is not modified.
func Analyze(appName string, e *model.Exploration) *model.Analysis {
	pages := make([]model.PageRecord, 0, len(e.Pages))
	for _, p := range e.Pages {
		p.PageType = ClassifyPage(SignalsOf(p))
		p.PageName = PageName(p.Path, p.Title)
		pages = append(pages, p)
	}

	forms := AnalyzeForms(e.Forms)

	var groups model.PageGroups
	for _, p := range pages {
		groups.Add(Categorize(p, forms), p)
	}
	groups.Normalize()

	a := &model.Analysis{
		AppName:    appName,
		BaseURL:    e.StartURL,
		Pages:      groups,
		Forms:      forms,
		Navigation: Navigation(pages, e.Links),
		Flows:      SynthesizeFlows(pages, forms),
		Scenarios:  SynthesizeScenarios(pages, forms),
		Framework:  DetectFramework(pages),
	}
	a.Statistics = Statistics(a.Pages.All(), a.Forms, a.Flows, a.Scenarios)
	a.Statistics.TotalElements = len(e.Elements)
	a.Statistics.PagesVisited = len(e.Visits)
	a.Statistics.PagesFailed = e.FailedVisits()
	a.Statistics.MaxDepthReached = e.MaxDepth()
	return a
}

// AnalyzeForms classifies forms, synthesizes their test data and drops
// repeats of the same form (same action path, method and fields) found on
// several pages. The first occurrence is kept.
func AnalyzeForms(raw []model.FormRecord) []model.FormRecord {
	forms := make([]model.FormRecord, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, f := range raw {
		sig := f.Signature()
		if seen[sig] {
			continue
		}
		seen[sig] = true
		f.Pattern = ClassifyForm(f)
		f.GeneratedTestData = SynthesizeTestData(f)
		forms = append(forms, f)
	}
	return forms
}

// Navigation builds the site map: one entry per page, in visit order, with
// the visited pages it links to.
func Navigation(pages []model.PageRecord, links map[string][]string) []model.NavEntry {
	visited := make(map[string]bool, len(pages))
	for _, p := range pages {
		visited[p.Path] = true
	}

	nav := make([]model.NavEntry, 0, len(pages))
	for _, p := range pages {
		entry := model.NavEntry{Path: p.Path, Name: p.PageName, Depth: p.Depth}
		for _, target := range links[p.Path] {
			if visited[target] && target != p.Path {
				entry.Links = append(entry.Links, target)
			}
		}
		nav = append(nav, entry)
	}
	return nav
}

// Statistics counts pages by type and forms by pattern. Crawl counters
// (visited, failed, depth, elements) are left for the caller.
func Statistics(pages []model.PageRecord, forms []model.FormRecord, flows []model.Flow, scenarios []model.TestScenario) model.Statistics {
	stats := model.Statistics{
		TotalPages:     len(pages),
		TotalForms:     len(forms),
		TotalFlows:     len(flows),
		TotalScenarios: len(scenarios),
		PagesByType:    make(map[string]int),
		FormsByPattern: make(map[string]int),
	}
	for _, p := range pages {
		stats.PagesByType[string(p.PageType)]++
	}
	for _, f := range forms {
		stats.FormsByPattern[string(f.Pattern)]++
	}
	return stats
}
