package models

// ScenarioSummary describes one catalog entry. This is the grader's view:
// it names the planted fault, which the evaluated party never sees over DNS.
type ScenarioSummary struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Focus       string `json:"focus"`
	Fault       string `json:"fault"`
	Remediation string `json:"remediation"`
	Zones       int    `json:"zones"`
}

// ScenarioListResponse lists the whole catalog.
type ScenarioListResponse struct {
	Scenarios []ScenarioSummary `json:"scenarios"`
	Count     int               `json:"count"`
}
