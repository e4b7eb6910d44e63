package model

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type AuthLogoutResponse struct {
	Status string `json:"status"`
}

// AccountLockedResponse carries the retry-after hint in seconds.
type AccountLockedResponse struct {
	Error      string `json:"error"`
	RetryAfter int64  `json:"retryAfter"`
}
