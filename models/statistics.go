package models

type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// Statistics is the dashboard aggregate over all repair requests.
type Statistics struct {
	TotalRequests      int64       `json:"totalRequests"`
	CompletedCount     int64       `json:"completedCount"`
	AverageRepairHours float64     `json:"averageRepairHours"`
	ByClimateTechType  []TypeCount `json:"byClimateTechType"`
}
