package models

// RequestLog stores one routed generation attempt for monitoring
type RequestLog struct {
	ID           string `gorm:"primaryKey" json:"id"`
	Timestamp    int64  `gorm:"index" json:"timestamp"`
	Protocol     string `gorm:"index" json:"protocol"`
	Model        string `gorm:"index" json:"model,omitempty"`
	Kind         string `json:"kind,omitempty"`
	AccountEmail string `json:"account_email,omitempty"`
	Status       int    `json:"status"`
	Duration     int64  `json:"duration"` // milliseconds
	Error        string `json:"error,omitempty"`
}

// RequestStats holds aggregated statistics for request logs
type RequestStats struct {
	TotalRequests int64 `json:"total_requests"`
	SuccessCount  int64 `json:"success_count"`
	ErrorCount    int64 `json:"error_count"`
}
