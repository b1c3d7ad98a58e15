// Package analyzer turns a raw exploration into an analysis: typed pages,
// classified forms with synthesized test data, category buckets, a site map,
// user flows, test scenarios and a framework guess.
//
// # Rules
//
// Every classification is an ordered rule set where the first matching rule
// wins. The order is part of the behavior: a page titled "Account login"
// is a login page, not a profile page, because the login rule comes first.
// Rule sets are built once at package init and are safe for concurrent use.
//
// Classification is pure. Running Analyze twice on the same exploration
// gives the same analysis, and re-classifying a stored page gives the type
// it already has.
//
// # Test data
//
// Test data is synthesized per field from its name, label, placeholder and
// type. Passwords are always the placeholder token "[TEST_PASSWORD]" so that
// generated artifacts never carry anything that looks like a real secret.
package analyzer
