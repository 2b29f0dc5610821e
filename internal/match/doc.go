// Package match turns scrobbled track identities into catalog IDs.
//
// The pipeline has three layers:
//
//   - [Normalize] strips noise (bracketed qualifiers, version words,
//     punctuation) so the same recording scrobbled under different labels
//     collapses to one identity.
//   - [Score], [RatioScore], and [FieldMatch] compute fuzzy similarity on
//     normalized strings; [MatchThreshold] and [StrongThreshold] are the
//     acceptance bounds shared across the module.
//   - [Engine] drives resolution: search cache first, then query
//     formulations against the catalog, fuzzy-scoring candidates and caching
//     the outcome either way so an identity is searched at most once.
//
// The engine depends on the small [ResolutionCache], [Searcher], and
// [UnfoundRecorder] interfaces rather than concrete repositories or
// services, which keeps the package free of storage and transport concerns.
package match
