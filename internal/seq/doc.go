// Package seq provides the Element Store: an ordered, length-bounded,
// possibly sparse sequence of tagged values.
//
// This package is the foundational layer of strata. Every engine package
// (flatten, splice, pull, keyset) imports seq; seq imports nothing internal.
//
// Key design constraints:
//   - Values form a sealed union (Null, Undefined, Bool, Int, Float, Text,
//     *Store, *Ref). Nothing else satisfies Value.
//   - A hole is a slot with no value. It is NOT Null and NOT Undefined.
//   - Store.Len() is authoritative for iteration bounds; Count() reports how
//     many slots are present.
//   - A Store is immutable once built. Engines never mutate their inputs and
//     always return freshly allocated results owned by the caller.
//   - Refs are compared by identity only and are never recursed into, unless
//     a caller explicitly asks for array-like recognition.
//
// Canonical JSON (MarshalCanonical) is the single serialization used for
// digests, golden traces and the journal.
package seq
