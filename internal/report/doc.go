// Package report renders appscout output.
//
// It holds two kinds of renderers:
//   - artifact renderers that turn AppKnowledge into the files stored next
//     to knowledge.json: SKILL.md, test-scenarios.md and flows.yaml
//   - writers that print a run summary or the run history in text,
//     Markdown or JSON
//
// Design decision: We separate rendering from the data structures (which
// are in the model package) so the knowledge engine stays free of
// formatting concerns. Artifacts is handed to the knowledge store as its
// render function.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
