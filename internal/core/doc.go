// Package core provides the journal's session model and its CSV round trip.
//
// This package holds all domain logic independent of any transport or
// storage. It is used by the HTTP server, the CLI, and tests without
// modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Session model: [SessionRecord] with its closed [TreatmentType] and
//     [AdministrationMethod] enumerations. Display names are the CSV values.
//   - CSV codec: [EscapeField] and [Tokenize] implement the exact quoting
//     rules of the export format, including the spreadsheet formula guard.
//   - Table: [Table] maps records to rows and back for one time zone and
//     music-link classifier. [Export] and [Import] use UTC with the default
//     classifier.
//   - Service: [Service] ties a [Table] to a [SessionStore] and bounds
//     concurrent imports with an [ImportLimiter].
//
// # Import
//
// Imports are all-or-nothing. The flow is:
//
//  1. Client calls [Service.ImportSessions] with an io.Reader
//  2. The reader is size-limited, a leading BOM is dropped, and the bytes
//     must be valid UTF-8
//  3. The header row is checked and every data row is decoded
//  4. On the first bad row the import fails with a [RowError] and nothing is
//     stored; otherwise all records are inserted in one store call
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - CSV001-CSV003: Malformed exports (header, rows, quoting)
//   - FILE001-FILE005: File errors (size, encoding, missing)
//   - DB004-DB006: Storage errors
//   - REQ001-REQ002: Cancelled and timed out requests
//   - LNK001: Unrecognized music links
package core
