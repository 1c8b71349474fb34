package types

// StatsResponse is the dashboard summary for the current local day.
type StatsResponse struct {
	Inside        int    `json:"inside"`
	Outside       int    `json:"outside"`
	LoginsToday   int    `json:"logins_today"`
	TotalStudents int    `json:"total_students"`
	NewStudents   int    `json:"new_students"`
	ServerTime    string `json:"server_time"`
}

// CountPayload is the body of the count broadcast events.
type CountPayload struct {
	Count int `json:"count"`
}
