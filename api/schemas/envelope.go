package schemas

// Response is the uniform JSON envelope returned by every API endpoint.
// Data is omitted when there is nothing to return (deletes, errors).
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
