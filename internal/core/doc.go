// Package core implements spreadsheet-export ingestion: validating uploads,
// recognising re-uploads by content fingerprint, writing each upload as one
// transaction, and serving sessions, sheets and row search back.
//
// The package has no transport dependencies. The HTTP server in internal/web
// and the sheetctl CLI both drive the same [Service].
//
// # Import
//
// [Service.ImportSheets] takes an [ImportRequest] and:
//
//  1. Validates it, collecting every field error into [ValidationErrors]
//  2. Removes the sheets named in metadata.excludedSheets
//  3. Computes the content fingerprint; a known fingerprint returns the
//     existing session with Duplicate set and writes nothing
//  4. Writes session, excluded sheets, sheets and rows (COPY batches of
//     [Options.BatchSize]) in a single transaction
//
// A failed write is rolled back completely and reported as a [*WriteError].
// A best-effort record of the failure is kept in processing_errors.
//
// # Queries
//
// Listing and search return [Page] values. Stored rows are decoded with
// internal/rowcodec, which understands both the current flat encoding and
// the older tagged encoding; a corrupt row decodes to an empty row rather
// than failing the page.
//
// # Error Handling
//
// [MapError] turns any error into a [UserMessage] with a support code:
//
//   - VAL000: validation failed
//   - NF001: session or sheet not found
//   - DB001-DB007: database constraints and connectivity
//   - IMP001-IMP005: import pipeline
//   - ERR000: unexpected; see logs
package core
