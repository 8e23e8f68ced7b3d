// Package fixture writes fetched collections as static JavaScript modules.
//
// Every fixture is a single line of the form
//
//	export const <name> = <json> //pragma: allowlist secret
//
// stored in <name>.js. The pragma keeps secret scanners from flagging the
// image and profile IDs inside the data.
//
// # Basic Usage
//
//	w := fixture.NewWriter("client/src/components/icse/wrappers/caches")
//	path, changed, err := w.Write(&fixture.Entry{
//		Name: "clusterVersions",
//		Data: []byte(doc),
//	})
//
// # Formatting
//
// The JSON is re-serialized the way Python's json.dumps writes the decoded
// value: one line, ", " and ": " separators, non-ASCII characters as \uXXXX
// escapes, integers with every digit and floats in shortest repr form
// (1.50 is 1.5, 1e3 is 1000.0). Member order is kept, so an unchanged
// collection yields a byte-identical file.
//
// # Writes
//
// Files are written to a temporary file in the target directory and renamed
// into place. A failed write never leaves a truncated fixture behind, and the
// previous contents are replaced without a backup.
//
// # Metrics
//
//   - apicache_fixtures_written_total{resource} - Fixtures written
//   - apicache_fixtures_unchanged_total{resource} - Writes that matched the existing file
//   - apicache_fixture_size_bytes{resource} - Size of the last written fixture
package fixture
