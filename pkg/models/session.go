package models

// Session is one logical instrumented process connection, identified by a
// producer-assigned id. The record outlives its socket: isConnected flips to
// false on disconnect but the session and its retained events stay queryable
// until ring eviction or an explicit clear.
type Session struct {
	SessionID   string `json:"sessionId"`
	AppName     string `json:"appName"`
	SDKVersion  string `json:"sdkVersion,omitempty"`
	ConnectedAt int64  `json:"connectedAt"` // wall-clock milliseconds
	LastSeenAt  int64  `json:"lastSeenAt"`  // wall-clock milliseconds
	IsConnected bool   `json:"isConnected"`
}

// SessionInfo joins a session record with its retained event count.
type SessionInfo struct {
	Session
	EventCount int `json:"eventCount"`
}
