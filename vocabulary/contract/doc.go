// Package contract provides vocabulary predicates for contract documents and the
// organizational entities they point at.
//
// Contracts live in the semantic store as entities whose triples reference the
// people and departments responsible for them. The predicates here are the
// compact names the store uses (v-s:, mnd-s:), registered with their full IRIs.
//
// Import this package to auto-register predicates:
//
//	import _ "github.com/c360studio/contractnotify/vocabulary/contract"
package contract
