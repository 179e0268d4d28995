// Package miscutils persists Go object graphs that are only mostly
// serializable.
//
// A Serializer first tries to encode a value as it is. When the codec
// rejects it, the graph is walked, the values the codec cannot carry are
// replaced by Lost placeholders, and the repaired copy is encoded instead.
// The caller's graph is never modified. Shared references and cycles in the
// input are shared references and cycles in the output.
//
// # Quick Start
//
//	store := miscutils.NewFileStore("state.pkl")
//	s, err := miscutils.NewSerializer(store)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	report, err := s.Serialize(ctx, map[string]any{
//	    "ok":   1,
//	    "conn": conn, // not serializable
//	})
//	// report.Losses lists what was replaced
//
//	v, err := s.Deserialize(ctx)
//	// v.(map[string]any)["conn"] is a *miscutils.Lost
//
// # Placeholders
//
// A Lost keeps only the text the dropped value rendered to. It reads as an
// empty container and answers attribute lookups with Void, so code walking a
// deserialized graph can treat lost members like empty ones.
//
// # Types behind interfaces
//
// Values stored in interface slots (any, error, map[string]any, ...) carry
// their type by name. Named types must be registered before they can travel
// that way, the same as with encoding/gob:
//
//	miscutils.Register(Session{})
//
// Unregistered values are not an error: they are replaced by placeholders.
//
// # Storage
//
// A Store is a single slot of bytes. FileStore writes a local file
// atomically; the providers packages store the slot in S3, SQLite or
// BadgerDB. Reading an empty or missing slot yields a nil value, not an
// error.
//
// # Cache and Secrets
//
// Cache is a persisted string-keyed map with an optional expiry. Secrets
// encrypts the serialized bytes with a key derived from a password.
package miscutils
