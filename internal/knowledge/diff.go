package knowledge

import "github.com/nao1215/appscout/internal/model"

// Diff compares two stored snapshots and lists what changed from older to
// newer, using the same identities as Merge: pages by path, forms by action
// path (repeats counted), flows by name.
func Diff(older, newer *model.AppKnowledge) *model.ChangeSummary {
	change := &model.ChangeSummary{
		PreviousVersion: older.Version,
		NewVersion:      newer.Version,
	}

	change.PagesAdded, change.PagesRemoved = diffKeys(pagePaths(older), pagePaths(newer))
	change.FormsAdded, change.FormsRemoved = diffKeys(formPaths(older), formPaths(newer))
	change.FlowsAdded, change.FlowsRemoved = diffKeys(flowNames(older), flowNames(newer))
	return change
}

// diffKeys returns the keys only in b and the keys only in a, treating the
// inputs as multisets and keeping their order.
func diffKeys(a, b []string) (added, removed []string) {
	remaining := make(map[string]int, len(a))
	for _, k := range a {
		remaining[k]++
	}
	added = []string{}
	for _, k := range b {
		if remaining[k] > 0 {
			remaining[k]--
			continue
		}
		added = append(added, k)
	}
	removed = []string{}
	for _, k := range a {
		if remaining[k] > 0 {
			remaining[k]--
			removed = append(removed, k)
		}
	}
	return added, removed
}

func pagePaths(k *model.AppKnowledge) []string {
	pages := k.Pages.All()
	paths := make([]string, 0, len(pages))
	seen := make(map[string]bool, len(pages))
	for _, p := range pages {
		if !seen[p.Path] {
			seen[p.Path] = true
			paths = append(paths, p.Path)
		}
	}
	return paths
}

func formPaths(k *model.AppKnowledge) []string {
	paths := make([]string, 0, len(k.Forms))
	for i := range k.Forms {
		paths = append(paths, k.Forms[i].ActionPath())
	}
	return paths
}

func flowNames(k *model.AppKnowledge) []string {
	names := make([]string, 0, len(k.UserFlows))
	for _, f := range k.UserFlows {
		names = append(names, f.Name)
	}
	return names
}
