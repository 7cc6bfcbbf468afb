package engine

// Result is the executor's output shape: columns plus rows. POINT values
// are rendered through types.Value.String() before landing here, so
// Records holds plain Go scalars (int32, float32, string, bool) ready
// for a caller to marshal.
type Result struct {
	Columns []string
	Records [][]interface{}
}

// Page is the paged view of a Result: the caller supplies offset/limit,
// columns are always returned in full, records is the sliced window,
// total is the unpaged row count.
type Page struct {
	Columns []string
	Records [][]interface{}
	Total   int
}

// Paginate slices r's records to [offset, offset+limit), clamping to the
// available range. limit <= 0 means "no limit" (return everything from
// offset onward).
func Paginate(r *Result, offset, limit int) *Page {
	total := len(r.Records)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return &Page{Columns: r.Columns, Records: r.Records[offset:end], Total: total}
}
