// Package indexer builds a persisted vector index from a document corpus.
//
// The corpus is a JSON Lines file with one document per line:
//
//	{"id": "theme/dark-mode", "text": "...", "metadata": {"title": "Dark mode", "source": "theme.md"}}
//
// Build runs the pipeline read -> chunk -> embed -> write:
//
//  1. Read: parse the corpus, assign a UUID to documents without an id
//  2. Chunk: split long documents into passages at paragraph boundaries
//  3. Embed: embed passages in batches on a bounded worker pool
//  4. Write: hand documents and vectors to vectorindex.Build, which stages
//     the files and swaps them into place with a checksum manifest
//
// One Indexer runs a single build at a time; a concurrent Build call
// returns ErrBuildInProgress instead of waiting.
//
//	idx := indexer.New(emb, nil, logger)
//	stats, err := idx.Build(ctx, "corpus/ui.jsonl", "indices/ui")
package indexer
