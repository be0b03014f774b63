package docstore

const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

type AppendRequest struct {
	Data map[string]any `json:"data"`
}

type AppendResponse struct {
	ID string `json:"id"`
}

type QueryResponse struct {
	Records []Record `json:"records"`
}

// Frame is one websocket message of a live subscription.
type Frame struct {
	Type    string   `json:"type"`
	Records []Record `json:"records,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
