// Package model defines the core data structures used throughout appscout.
//
// This package contains the following main types:
//   - PageRecord, FormRecord, ElementRecord: facts extracted from one page
//   - Exploration: the accumulated result of one crawl session
//   - Analysis: classified pages, forms, flows and scenarios of one pass
//   - AppKnowledge: the persisted, versioned knowledge of an application
//   - Run: the carrier passed through the pipeline steps
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, analyzer, knowledge and report packages all use
// these types, so centralizing them prevents import cycles.
//
// The knowledge types are serialized with camelCase JSON keys because the
// knowledge artifact is edited by operators (customData, customTestData).
package model
