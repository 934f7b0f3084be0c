package api

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}
