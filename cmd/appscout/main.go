// Package main provides the entry point for the appscout CLI.
//
// appscout explores a web application with a headless browser, classifies
// its pages and forms, and keeps a versioned knowledge base of the
// application: knowledge.json, SKILL.md, test-scenarios.md and flows.yaml.
//
// Usage:
//
//	appscout explore --name acme --url https://app.acme.test/
//	appscout update --name acme
//	appscout history acme --compare
//
// See --help for all available options.
package main

import "github.com/joho/godotenv"

// main is the entry point for appscout.
func main() {
	// Credentials may live in a .env file next to the config file.
	_ = godotenv.Load() //nolint:errcheck // A missing .env file is normal.
	Execute()
}
