// Package chunker splits corpus documents into passages small enough to embed.
//
// Text is split at paragraph boundaries (blank lines) and paragraphs are
// packed into passages up to a token limit, using the chars/4 estimate. A
// paragraph larger than the limit is split at line boundaries, and a single
// oversized line is cut into fixed windows as a last resort.
//
// A document that fits in one passage keeps its id; otherwise passages are
// numbered "<id>#<n>" starting at 0 and carry parent_id and chunk metadata.
package chunker
