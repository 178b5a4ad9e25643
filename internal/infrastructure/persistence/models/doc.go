// Package models maps the procurement aggregates onto GORM tables.
//
// Domain types carry no ORM tags; each model here has a ToDomain method and
// a ...ModelFromDomain constructor. Line items live in child tables keyed by
// their parent ID and ordered by line_no. The discrepancies of a receipt's
// latest match are kept in a jsonb column.
package models
