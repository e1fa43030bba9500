// Package stage prepares NFT collections for the canister and uploads them.
//
// A staging run starts from Args: the collection identity and the files that
// make up the collection and its NFT definitions. Files are first
// materialized (their content loaded from disk, S3 or the web), then the
// metadata documents are built, one for the collection and one per token.
// Finally every document is registered with the canister and the libraries it
// introduces are uploaded in chunks.
package stage
