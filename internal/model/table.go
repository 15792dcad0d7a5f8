package model

// Table is a work table that consumes pallets.  Tables call rows or
// articles from their kiosk.
type Table struct {
	ID   int64  // work_tables.id
	Name string // work_tables.name
}
