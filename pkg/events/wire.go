package events

// BroadcastRequest is the body of the internal broadcast endpoint. A nil
// TargetSubjects reaches every connection; an empty list reaches none.
type BroadcastRequest struct {
	Event          Event    `json:"event"`
	TargetSubjects []string `json:"targetSubjects,omitempty"`
}

// BroadcastResult is the response of the internal broadcast endpoint.
type BroadcastResult struct {
	Success          bool `json:"success"`
	BroadcastCount   int  `json:"broadcastCount"`
	TotalConnections int  `json:"totalConnections"`
}
