// HistoryFilters describe user-provided filters to narrow the run history.
package dto

import "time"

type HistoryFilters struct {
	Model string
	Class string
	From  time.Time
	To    time.Time
	Page  int
	Limit int
}
