package watcher

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventStatusUpdated     EventType = "status_updated"
	EventBlocksUpdated     EventType = "blocks_updated"
	EventOverviewUpdated   EventType = "overview_updated"
	EventValidatorsUpdated EventType = "validators_updated"
	EventPortfolioUpdated  EventType = "portfolio_updated"
	EventError             EventType = "error"
)

// Event represents a monitoring event.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// ErrorData is the payload of EventError. Mock is set when fixture data was
// published in place of the failed fetch.
type ErrorData struct {
	Source  string `json:"source"`
	Message string `json:"message"`
	Mock    bool   `json:"mock"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
