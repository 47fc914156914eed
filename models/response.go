package models

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BackendError is the error body returned by the core-manager API.
type BackendError struct {
	Message string `json:"message"`
}
