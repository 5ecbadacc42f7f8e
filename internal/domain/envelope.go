package domain

// Envelope is the JSON wrapper every API response travels in.
// Successful responses carry Data; error responses leave Data at its zero
// value and fill Message and Code.
type Envelope[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Status  int    `json:"status"`
	Success bool   `json:"success"`
}
