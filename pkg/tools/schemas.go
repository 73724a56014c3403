package tools

import "encoding/json"

// Input schemas for the tool declarations. Kept as raw JSON so the wire
// shape is exactly what the agent sees.

var emptySchema = json.RawMessage(`{"type":"object","properties":{}}`)

var windowSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sinceSeconds": {"type": "integer", "description": "Only include events newer than this many seconds"},
		"sessionId": {"type": "string", "description": "Restrict to one session"},
		"limit": {"type": "integer", "description": "Maximum events to return (default 100)"}
	}
}`)

var consoleSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sinceSeconds": {"type": "integer", "description": "Only include messages newer than this many seconds"},
		"level": {"type": "string", "enum": ["debug", "log", "info", "warn", "error"], "description": "Exact level match"},
		"search": {"type": "string", "description": "Case-insensitive substring of the message"},
		"sessionId": {"type": "string", "description": "Restrict to one session"},
		"limit": {"type": "integer", "description": "Maximum messages to return (default 100)"}
	}
}`)

var networkSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sinceSeconds": {"type": "integer", "description": "Only include requests newer than this many seconds"},
		"method": {"type": "string", "description": "Exact HTTP method match, case-insensitive"},
		"search": {"type": "string", "description": "Case-insensitive substring of the URL"},
		"statusMin": {"type": "integer", "description": "Minimum status code, inclusive"},
		"statusMax": {"type": "integer", "description": "Maximum status code, inclusive"},
		"minDurationMs": {"type": "number", "description": "Minimum duration in milliseconds"},
		"sessionId": {"type": "string", "description": "Restrict to one session"},
		"limit": {"type": "integer", "description": "Maximum requests to return (default 100)"}
	}
}`)

var databaseSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sinceSeconds": {"type": "integer", "description": "Only include queries newer than this many seconds"},
		"operation": {"type": "string", "enum": ["SELECT", "INSERT", "UPDATE", "DELETE", "OTHER"], "description": "Exact operation match"},
		"search": {"type": "string", "description": "Case-insensitive substring of the query text"},
		"minDurationMs": {"type": "number", "description": "Minimum duration in milliseconds"},
		"sessionId": {"type": "string", "description": "Restrict to one session"},
		"limit": {"type": "integer", "description": "Maximum queries to return (default 100)"}
	}
}`)

var renderSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sinceSeconds": {"type": "integer", "description": "Only include snapshots newer than this many seconds"},
		"component": {"type": "string", "description": "Case-insensitive substring of a component name"},
		"sessionId": {"type": "string", "description": "Restrict to one session"},
		"limit": {"type": "integer", "description": "Maximum snapshots to return (default 100)"}
	}
}`)

var performanceSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sinceSeconds": {"type": "integer", "description": "Only include metrics newer than this many seconds"},
		"metricName": {"type": "string", "description": "Exact metric name match, e.g. LCP, CLS, INP"},
		"rating": {"type": "string", "enum": ["good", "needs-improvement", "poor"], "description": "Producer-assigned rating"},
		"sessionId": {"type": "string", "description": "Restrict to one session"},
		"limit": {"type": "integer", "description": "Maximum metrics to return (default 100)"}
	}
}`)

var stateSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sinceSeconds": {"type": "integer", "description": "Only include changes newer than this many seconds"},
		"storeId": {"type": "string", "description": "Exact state store id match"},
		"sessionId": {"type": "string", "description": "Restrict to one session"},
		"limit": {"type": "integer", "description": "Maximum changes to return (default 100)"}
	}
}`)

var timelineSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sinceSeconds": {"type": "integer", "description": "Only include events newer than this many seconds"},
		"types": {"type": "array", "items": {"type": "string"}, "description": "Event types to include; empty means all"},
		"limit": {"type": "integer", "description": "Maximum events to return, newest retained (default 100)"}
	}
}`)

var detectSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sinceSeconds": {"type": "integer", "description": "Only analyze events newer than this many seconds"},
		"severityFilter": {"type": "string", "enum": ["high", "medium", "low"], "description": "Only return issues at this severity"}
	}
}`)

var captureSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sessionId": {"type": "string", "description": "Target session; defaults to the earliest-connected live session"},
		"maxSize": {"type": "integer", "description": "Maximum snapshot size in bytes; the app truncates beyond this"},
		"timeoutMs": {"type": "integer", "description": "Command timeout in milliseconds (default 10000)"}
	}
}`)

var reconScanSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sessionId": {"type": "string", "description": "Target session; defaults to the earliest-connected live session"},
		"categories": {"type": "array", "items": {"type": "string"}, "description": "Scanner categories to run; empty means all"},
		"timeoutMs": {"type": "integer", "description": "Command timeout in milliseconds (default 10000)"}
	}
}`)

var reconElementSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"sessionId": {"type": "string", "description": "Target session; defaults to the earliest-connected live session"},
		"selector": {"type": "string", "description": "CSS selector of the subtree root"},
		"depth": {"type": "integer", "description": "Maximum subtree depth to serialize"},
		"timeoutMs": {"type": "integer", "description": "Command timeout in milliseconds (default 10000)"}
	},
	"required": ["selector"]
}`)
