package materials

// DefaultPerPage is the page size of the materials table.
const DefaultPerPage = 10

// Page is one page of the materials table.
type Page struct {
	Items      []Material `json:"items"`
	Page       int        `json:"page"`
	PerPage    int        `json:"per_page"`
	TotalPages int        `json:"total_pages"`
	Total      int        `json:"total"`
	HasPrev    bool       `json:"has_prev"`
	HasNext    bool       `json:"has_next"`
}

// Page returns the 1-based page of materials. Out of range pages are
// clamped to the first or last page, and perPage < 1 uses DefaultPerPage.
// An empty database has a single empty page.
func (db *Database) Page(page, perPage int) Page {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	total := len(db.Materials)
	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}

	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > total {
		end = total
	}

	items := make([]Material, end-start)
	copy(items, db.Materials[start:end])

	return Page{
		Items:      items,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		Total:      total,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	}
}
