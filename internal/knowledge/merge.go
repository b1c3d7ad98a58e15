package knowledge

import (
	"fmt"
	"slices"
	"time"

	"github.com/nao1215/appscout/internal/analyzer"
	"github.com/nao1215/appscout/internal/model"
)

// New creates version 1.0.0 knowledge from an analysis. Creation adds no
// update history entry.
func New(a *model.Analysis, now time.Time) *model.AppKnowledge {
	k := &model.AppKnowledge{
		SchemaVersion: model.CurrentSchemaVersion,
		AppName:       a.AppName,
		BaseURL:       a.BaseURL,
		Version:       InitialVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
		Pages:         clonePages(a.Pages),
		Forms:         append([]model.FormRecord(nil), a.Forms...),
		Navigation:    append([]model.NavEntry(nil), a.Navigation...),
		UserFlows:     append([]model.Flow(nil), a.Flows...),
		TestScenarios: append([]model.TestScenario(nil), a.Scenarios...),
		Framework:     a.Framework,
		Statistics:    a.Statistics,
	}
	Normalize(k)
	return k
}

// Merge folds a fresh analysis into existing knowledge and returns the new
// knowledge with a summary of what changed. Neither input is modified.
//
// Pages are matched by path across categories and forms by action path,
// with repeated action paths paired in order. Operator data on matched
// records is carried forward. Records missing from the fresh analysis are
// dropped and reported in RemovedPages and RemovedForms.
func Merge(existing *model.AppKnowledge, fresh *model.Analysis, now time.Time) (*model.AppKnowledge, *model.ChangeSummary, error) {
	next, err := Bump(existing.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot bump stored knowledge version: %w", err)
	}

	change := &model.ChangeSummary{
		PreviousVersion: existing.Version,
		NewVersion:      next,
		PagesAdded:      []string{},
		PagesRemoved:    []string{},
		FormsAdded:      []string{},
		FormsRemoved:    []string{},
		FlowsAdded:      []string{},
		FlowsRemoved:    []string{},
	}

	appName := fresh.AppName
	if appName == "" {
		appName = existing.AppName
	}
	k := &model.AppKnowledge{
		SchemaVersion: model.CurrentSchemaVersion,
		AppName:       appName,
		BaseURL:       fresh.BaseURL,
		Version:       next,
		CreatedAt:     existing.CreatedAt,
		UpdatedAt:     now,
		Pages:         mergePages(existing, fresh.Pages, change),
		Forms:         mergeForms(existing.Forms, fresh.Forms, change),
		Navigation:    append([]model.NavEntry(nil), fresh.Navigation...),
		UserFlows:     mergeFlows(existing.UserFlows, fresh.Flows, change),
		TestScenarios: mergeScenarios(existing.TestScenarios, fresh.Scenarios),
		Framework:     fresh.Framework,
		Statistics:    fresh.Statistics,
		RemovedPages:  change.PagesRemoved,
		RemovedForms:  change.FormsRemoved,
	}
	k.Statistics.TotalPages = k.Pages.Len()
	k.Statistics.TotalForms = len(k.Forms)
	k.Statistics.TotalFlows = len(k.UserFlows)
	k.Statistics.TotalScenarios = len(k.TestScenarios)

	k.UpdateHistory = make([]model.UpdateEntry, 0, len(existing.UpdateHistory)+1)
	k.UpdateHistory = append(k.UpdateHistory, existing.UpdateHistory...)
	k.UpdateHistory = append(k.UpdateHistory, model.UpdateEntry{
		Timestamp:       now,
		PreviousVersion: existing.Version,
		NewVersion:      next,
		PagesAdded:      len(change.PagesAdded),
		PagesRemoved:    len(change.PagesRemoved),
		FormsAdded:      len(change.FormsAdded),
		FormsRemoved:    len(change.FormsRemoved),
		FlowsAdded:      len(change.FlowsAdded),
	})

	Normalize(k)
	return k, change, nil
}

func mergePages(existing *model.AppKnowledge, fresh model.PageGroups, change *model.ChangeSummary) model.PageGroups {
	old := make(map[string]model.PageRecord)
	for _, p := range existing.Pages.All() {
		if _, dup := old[p.Path]; !dup {
			old[p.Path] = p
		}
	}

	var merged model.PageGroups
	seen := make(map[string]bool)
	for _, c := range model.Categories() {
		for _, p := range fresh.Get(c) {
			prev, ok := old[p.Path]
			switch {
			case ok && len(prev.CustomData) > 0 && len(p.CustomData) == 0:
				p.CustomData = prev.CustomData
			case !ok && !seen[p.Path]:
				change.PagesAdded = append(change.PagesAdded, p.Path)
			}
			seen[p.Path] = true
			merged.Add(c, p)
		}
	}

	for _, p := range existing.Pages.All() {
		if !seen[p.Path] {
			seen[p.Path] = true
			change.PagesRemoved = append(change.PagesRemoved, p.Path)
		}
	}
	merged.Normalize()
	return merged
}

func mergeForms(existing, fresh []model.FormRecord, change *model.ChangeSummary) []model.FormRecord {
	pending := make(map[string][]int)
	for i := range existing {
		key := existing[i].ActionPath()
		pending[key] = append(pending[key], i)
	}

	merged := make([]model.FormRecord, 0, len(fresh))
	for _, f := range fresh {
		key := f.ActionPath()
		if queue := pending[key]; len(queue) > 0 {
			prev := existing[queue[0]]
			pending[key] = queue[1:]
			if len(prev.CustomTestData) > 0 && len(f.CustomTestData) == 0 {
				f.CustomTestData = prev.CustomTestData
			}
		} else {
			change.FormsAdded = append(change.FormsAdded, key)
		}
		merged = append(merged, f)
	}

	var leftover []int
	for _, queue := range pending {
		leftover = append(leftover, queue...)
	}
	slices.Sort(leftover)
	for _, i := range leftover {
		change.FormsRemoved = append(change.FormsRemoved, existing[i].ActionPath())
	}
	return merged
}

func mergeFlows(existing, fresh []model.Flow, change *model.ChangeSummary) []model.Flow {
	freshNames := make(map[string]bool, len(fresh))
	for _, f := range fresh {
		freshNames[f.Name] = true
	}
	oldNames := make(map[string]bool, len(existing))
	for _, f := range existing {
		oldNames[f.Name] = true
	}

	merged := append([]model.Flow(nil), fresh...)
	for _, f := range fresh {
		if !oldNames[f.Name] {
			change.FlowsAdded = append(change.FlowsAdded, f.Name)
		}
	}
	for _, f := range existing {
		switch {
		case freshNames[f.Name]:
		case f.Custom:
			merged = append(merged, f)
		default:
			change.FlowsRemoved = append(change.FlowsRemoved, f.Name)
		}
	}
	return merged
}

func mergeScenarios(existing, fresh []model.TestScenario) []model.TestScenario {
	names := make(map[string]bool, len(fresh))
	for _, s := range fresh {
		names[s.Name] = true
	}
	merged := append([]model.TestScenario(nil), fresh...)
	for _, s := range existing {
		if s.Custom && !names[s.Name] {
			merged = append(merged, s)
		}
	}
	return merged
}

// Normalize replaces nil collections with empty ones so the JSON form is
// stable.
func Normalize(k *model.AppKnowledge) {
	k.Pages.Normalize()
	if k.Forms == nil {
		k.Forms = []model.FormRecord{}
	}
	for i := range k.Forms {
		if k.Forms[i].GeneratedTestData == nil {
			k.Forms[i].GeneratedTestData = map[string]string{}
		}
	}
	if k.Navigation == nil {
		k.Navigation = []model.NavEntry{}
	}
	if k.UserFlows == nil {
		k.UserFlows = []model.Flow{}
	}
	if k.TestScenarios == nil {
		k.TestScenarios = []model.TestScenario{}
	}
	if k.UpdateHistory == nil {
		k.UpdateHistory = []model.UpdateEntry{}
	}
	if k.Statistics.PagesByType == nil {
		k.Statistics.PagesByType = map[string]int{}
	}
	if k.Statistics.FormsByPattern == nil {
		k.Statistics.FormsByPattern = map[string]int{}
	}
	if k.Framework == "" {
		k.Framework = analyzer.FrameworkUnknown
	}
}

func clonePages(g model.PageGroups) model.PageGroups {
	var out model.PageGroups
	for _, c := range model.Categories() {
		for _, p := range g.Get(c) {
			out.Add(c, p)
		}
	}
	return out
}
