// Package pipeline runs one appscout run as a sequence of steps.
//
// The default pipeline is load, explore, analyze, merge, persist and
// record. Each step receives the same *model.Run and fills in its part:
// the seed, the exploration, the analysis, the new knowledge, the
// artifact directory and finally the history entry.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// so that every step gets the same error handling, logging and cancellation
// check, and so tests can run any prefix of the pipeline with fake steps.
//
// BatchProcessor runs several applications from the config file
// concurrently, each with its own pipeline and browser.
package pipeline
