// Package seed builds the initial exploration seed: the target URL, hint
// pages, login credentials and feature hints.
//
// A seed comes from two places. The config file and flags provide the
// authoritative values, and an optional documentation file (README, user
// guide, release notes) is scanned for URLs, credentials and a feature list
// to fill in what the config left empty. The seed only primes the frontier;
// it never changes how pages are classified or merged.
package seed
