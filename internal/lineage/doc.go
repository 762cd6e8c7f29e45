// Package lineage extracts candidate storage-object references from text.
//
// Two kinds of input are supported:
//
//   - SQL text from query activities. Comments and string literals are
//     blanked out, then the token following every FROM, JOIN and INTO keyword
//     is captured with its bracket/quote delimiters removed.
//   - Markup and script content from rendered assets. Lookup/write function
//     calls with a quoted first argument and REST paths that name an object
//     by key are captured together with the mechanism that produced them.
//
// Extraction is heuristic: no SQL grammar is parsed. Tokens are
// returned verbatim; matching them against known objects is the job of the
// registry package.
//
// # Basic Usage
//
//	refs := lineage.ExtractSQLReferences("SELECT * FROM [Orders Daily] o JOIN Customers c ON ...")
//	// refs == []string{"Orders Daily", "Customers"}
//
//	for _, ref := range lineage.ExtractAssetReferences(html) {
//	    fmt.Println(ref.Token, ref.Evidence())
//	}
package lineage
