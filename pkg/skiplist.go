package sumcache

import (
	"strings"

	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// Record is one "<token>  <name>" line of a sidecar file
type Record struct {
	Name  string
	Token string
}

// recordList wraps the generic zerocopyskiplist keyed by file name
type recordList struct {
	skiplist *zcsl.ZeroCopySkiplist[Record, string, string]
}

// newRecordList creates an empty list ordered by name
func newRecordList(maxLevels int) *recordList {
	if maxLevels < 8 {
		maxLevels = 16
	}

	getKeyFromItem := func(r *Record) string {
		return r.Name
	}

	// Size of the rendered line, used when serialising
	getItemSize := func(r *Record) int {
		return len(r.Token) + 2 + len(r.Name) + 1
	}

	cmpKey := func(a, b string) int {
		return strings.Compare(a, b)
	}

	return &recordList{
		skiplist: zcsl.MakeZeroCopySkiplist[Record, string, string](
			maxLevels,
			getKeyFromItem,
			getItemSize,
			cmpKey,
		),
	}
}

// Set inserts or replaces the record for name
func (rl *recordList) Set(name, token, context string) {
	rec := &Record{Name: name, Token: token}
	if rl.skiplist.Insert(rec, context) {
		return
	}
	// Insert refuses duplicate keys; the latest value wins
	rl.skiplist.Delete(name)
	rl.skiplist.Insert(rec, context)
}

// Get returns the token stored for name
func (rl *recordList) Get(name string) (string, bool) {
	itemPtr, _ := rl.skiplist.Find(name)
	if itemPtr == nil {
		return "", false
	}
	return itemPtr.Item().Token, true
}

// Delete removes the record for name
func (rl *recordList) Delete(name string) bool {
	return rl.skiplist.Delete(name)
}

// Merge merges other into rl; other's tokens win on collisions
func (rl *recordList) Merge(other *recordList) error {
	if other == nil {
		return nil
	}
	return rl.skiplist.Merge(other.skiplist, MergeTheirs)
}

// ForEach iterates in ascending name order
func (rl *recordList) ForEach(callback func(rec *Record, context string) bool) {
	for current := rl.skiplist.First(); current != nil; current = current.Next() {
		if !callback(current.Item(), current.Context()) {
			break
		}
	}
}

// Length returns the number of records
func (rl *recordList) Length() int {
	return rl.skiplist.Length()
}

// IsEmpty returns true if the list has no records
func (rl *recordList) IsEmpty() bool {
	return rl.skiplist.IsEmpty()
}

// toMap flattens the list, mainly for lookups
func (rl *recordList) toMap() map[string]string {
	m := make(map[string]string, rl.Length())
	rl.ForEach(func(rec *Record, _ string) bool {
		m[rec.Name] = rec.Token
		return true
	})
	return m
}
