package fixture

import (
	"time"
)

// FileExt is the extension of every fixture file.
const FileExt = ".js"

// Entry is one collection ready to be written.
type Entry struct {
	// Name is the resource name; it becomes the exported constant and file name
	Name string

	// Data is the collection as a single JSON document
	Data []byte

	// Pages is how many pages the collection was assembled from
	Pages int

	// FetchedAt is when the collection was fetched
	FetchedAt time.Time
}

// FileName returns the file the entry is written to.
func (e *Entry) FileName() string {
	return FileName(e.Name)
}

// Size returns the size of the JSON document in bytes.
func (e *Entry) Size() int {
	return len(e.Data)
}

// FileName returns the fixture file name for resource name.
func FileName(name string) string {
	return name + FileExt
}
