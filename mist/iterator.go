package mist

// SchemaIDIterator walks a snapshot of schema IDs. Each call to
// Specification.SchemaIDs returns an independent iterator, so concurrent
// traversals do not interfere.
type SchemaIDIterator struct {
	ids []string
	pos int
}

// HasNext reports whether Next will return another ID
func (it *SchemaIDIterator) HasNext() bool {
	return it.pos < len(it.ids)
}

// Next returns the next schema ID, or "" when exhausted
func (it *SchemaIDIterator) Next() string {
	if !it.HasNext() {
		return ""
	}
	id := it.ids[it.pos]
	it.pos++
	return id
}

// Reset rewinds the iterator to the first ID
func (it *SchemaIDIterator) Reset() {
	it.pos = 0
}

// Len returns the number of IDs in the snapshot
func (it *SchemaIDIterator) Len() int {
	return len(it.ids)
}
