// Package storage provides the key-value cache behind lexcache, backed by
// BoltDB (bbolt).
//
// Every entry is addressed by a Key: an ordered sequence of string
// segments encoded with a 0x1f separator. The separator sorts below all
// printable bytes, so a prefix scan over ("rel", "0020", "HB1") can never
// pick up entries under "HB10".
//
// # Capabilities
//
//   - Get: point lookup, decoding JSON into a caller value. Absent and
//     expired entries both report found=false; neither is an error.
//   - Set: single upsert with an optional TTL.
//   - Scan: ordered iteration over all live entries below a key path.
//   - Batch: queued sets applied in one bbolt update transaction, giving
//     the batch atomic visibility. There is no cross-batch transaction; a
//     reader between two batches of the same job sees a consistent
//     snapshot of everything committed so far, which the read paths treat
//     as "not yet indexed" rather than an error.
//
// # TTL
//
// bbolt has no native expiry, so values are stored in an {v, exp}
// envelope. Reads treat expired entries as absent; Sweep reclaims the
// space. Only inverted relationship entries for the latest congress carry
// a TTL (see pkg/congress.TTLPolicy); older congresses never change
// upstream, so their entries live forever.
//
// # Usage
//
//	store, err := storage.NewBoltStore(dataDir)
//	if err != nil { ... }
//	defer store.Close()
//
//	batch := store.Batch()
//	batch.Set(storage.PersonMembershipKey(id), rec, 0)
//	batch.Set(storage.FullNameKey(rec.FullName), storage.PersonMembershipKey(id), 0)
//	if err := batch.Commit(); err != nil { ... }
//
// The second Set above is a secondary-index pointer: its value is the
// primary record's key path, not a copy of the record. Committing both on
// one batch is what keeps a reader from ever observing a pointer to a
// record that does not exist.
package storage
