package models

// JSONIngestRequest is the schema of a structured upload
type JSONIngestRequest struct {
	TenantID string `json:"tenant_id"`
	Text     string `json:"text"`
	LogID    string `json:"log_id,omitempty"`
}

// AcceptResponse is returned once an envelope has been buffered
type AcceptResponse struct {
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

// ErrorResponse is returned when a submission is rejected
type ErrorResponse struct {
	Error string `json:"error"`
}
