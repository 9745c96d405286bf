// Package chatdb provides read-only access to the macOS Messages database
// (chat.db). It never writes: the database is owned by Messages.app, which
// continues writing to it while we read.
//
// The package normalizes rows into Message values, resolving message text
// across the two historical storage encodings (plain text column vs the
// attributedBody archive introduced in later macOS versions) and resolving
// group-chat membership from both the per-message cached room name and the
// chat row's group identifier.
//
// A DB is not safe for concurrent statement execution on a single instance.
// Callers that need parallel reads should open independent instances; the
// store supports any number of read-only connections.
package chatdb
