package domain

// TypeOccupancy is one row of the occupancy-by-type report.
type TypeOccupancy struct {
	Type     string `json:"type"`
	Total    int    `json:"total"`
	Occupied int    `json:"occupied"`
}
