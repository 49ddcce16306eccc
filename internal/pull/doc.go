// Package pull implements lazy, pull-based iterator chains.
//
// A Producer yields one item per Next call. An Iterator wraps a producer and
// owns it exclusively: adapters (Map, Filter, Take, Drop, FlatMap) wrap an
// upstream Iterator and pull from it only when they are pulled themselves,
// and terminals (ForEach, ToSlice, ToStore, Reduce, Some, Every, Find) drain
// a chain.
//
// Contract:
//   - Once an Iterator reports done, or fails, every later Next reports done.
//   - Next must not be re-entered from inside a callback of the same chain;
//     doing so returns InvalidArgument.
//   - Errors from a producer or callback are returned exactly as they were
//     raised. Partial results are discarded.
//   - Invalid arguments close the upstream before they are reported, and so
//     do early exits and callback failures. A producer that fails on Next is
//     not closed.
//
// The asynchronous flavour (AsyncIterator, Future) keeps the same contract
// with context-aware waits: only one pull is ever outstanding and every pull
// is awaited before the next is issued.
package pull
