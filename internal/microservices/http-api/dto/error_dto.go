package dto

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success    bool   `json:"success"`
	Code       string `json:"code"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Path       string `json:"path"`
	Timestamp  string `json:"timestamp"`
}
