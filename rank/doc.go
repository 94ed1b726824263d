// Package rank defines the ranking collaborator used by admission predicates
// (topic matching) and prompt assembly (example reordering).
//
// A Ranker orders candidate texts by relevance to a query. Two
// implementations are provided:
//
//   - EmbeddingRanker scores candidates by cosine similarity of embeddings
//     produced by an Embedder (see model/openai for a hosted embedder)
//   - LexicalRanker scores by token overlap and needs no network access
//
// Rankers must be safe for concurrent use and must not mutate their inputs.
package rank
