// Package sqlite persists segmentation runs and their cluster summaries.
//
// All SQL lives here rather than in the grid or perception layers. The schema
// is carried as embedded golang-migrate migrations and applied by Open.
package sqlite
