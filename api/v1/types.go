// Package v1 defines the JSON bodies exchanged over the HTTP API.
package v1

// Result statuses.
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
	StatusConflict = "conflict"
)

// CreateRequest is the body of POST /kv/{key}.
type CreateRequest struct {
	Timestamp int64  `json:"timestamp"`
	Data      []byte `json:"data"`
}

// UpdateRequest is the body of PUT /kv/{key}. Version must equal the stored
// entry's current version.
type UpdateRequest struct {
	Version   int64  `json:"version"`
	Timestamp int64  `json:"timestamp"`
	Data      []byte `json:"data"`
}

// Result is returned by every /kv operation. On a conflict the entry fields
// describe what is currently stored. A delete reports the removed version.
type Result struct {
	Status    string `json:"status"`
	Version   int64  `json:"version,omitempty"`
	Revision  int64  `json:"revision,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Data      []byte `json:"data,omitempty"`
}

// GreetResponse is returned by GET /greet/{name}.
type GreetResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is returned for malformed requests and backend failures.
type ErrorResponse struct {
	Error string `json:"error"`
}
