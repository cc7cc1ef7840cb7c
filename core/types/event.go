package types

// Event is a structured observable outcome emitted by an invocation. The
// attributes carry string-encoded values so downstream consumers (logs,
// metrics, RPC clients) never need to decode domain types.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
