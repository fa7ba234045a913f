// Package model downloads and builds the learned evaluation model used by the
// learned-model agent.
//
// A Loader owns the model for the lifetime of the process. The first Acquire
// downloads the weights through a Fetcher (HTTPFetcher streams them with
// progress reports and retries transient failures) and builds them with a
// BuildFunc. Downloads are deduplicated, and a second caller arriving while
// the build runs receives ErrNotReady instead of starting another build.
//
// The default BuildFunc parses n-tuple network weights (ParseNTuple). A
// Network scores a 4x4 board, given as flattened log2 tile values, by summing
// table lookups over the eight rotations and reflections of the board.
package model
