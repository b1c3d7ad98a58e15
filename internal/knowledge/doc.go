// Package knowledge creates, merges, migrates and stores versioned
// application knowledge.
//
// # Versions
//
// Knowledge versions are MAJOR.MINOR.PATCH with non-negative decimal
// components and no leading zeros. A leading "v" is accepted when parsing
// but never written. New knowledge starts at 1.0.0 and every update bumps
// the minor component and resets the patch component.
//
// # Merging
//
// An update re-explores the application and merges the fresh analysis into
// the stored knowledge. Fresh data wins for everything derived from the
// application itself; operator data (page customData, form customTestData,
// flows and scenarios marked custom) is carried forward. Pages and forms the
// fresh exploration no longer finds are dropped and listed in RemovedPages
// and RemovedForms so the operator can see what went away.
//
// # Storage
//
// Each application has a directory holding four artifacts: knowledge.json,
// SKILL.md, test-scenarios.md and flows.yaml. Before any artifact is
// overwritten, the existing set is copied to backups/<timestamp>/, and if a
// write fails the backup is restored.
package knowledge
