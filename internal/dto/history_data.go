// HistoryData is a paginated response payload for the detection history.
package dto

type HistoryData struct {
	Runs        []RunInfo `json:"runs"`
	Classes     []string  `json:"classes"`
	Length      int       `json:"length"`
	TotalPages  int       `json:"totalPages"`
	CurrentPage int       `json:"currentPage"`
	Limit       int       `json:"pageSize"`
}
