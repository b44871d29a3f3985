// Package schema idempotently provisions the five append-only logs the
// core depends on, and verifies they exist.
package schema

// MessagesDDL creates the message log: the communication channel between
// front-end channels, the agent loop, and tools.
const MessagesDDL = `
CREATE STREAM IF NOT EXISTS messages (
    id string DEFAULT uuid(),
    timestamp datetime64(3) DEFAULT now64(3),

    source string,
    target string,
    session_id string,

    message_type string,
    content string,

    user_id string,
    channel_metadata string,
    priority int8 DEFAULT 0
)
SETTINGS event_time_column='timestamp';
`

// LLMLogsDDL creates the LLM log: one record per provider call.
const LLMLogsDDL = `
CREATE STREAM IF NOT EXISTS llm_logs (
    id string DEFAULT uuid(),
    timestamp datetime64(3) DEFAULT now64(3),

    session_id string,
    model string,
    provider string,

    input_tokens int32,
    output_tokens int32,
    total_tokens int32,
    estimated_cost_usd float32,

    latency_ms int32,
    time_to_first_token_ms int32 DEFAULT 0,

    system_prompt_hash string,
    user_message_preview string,
    assistant_response_preview string,

    tools_called array(string),
    tool_call_count int8,

    status string,
    error_message string DEFAULT ''
)
SETTINGS event_time_column='timestamp';
`

// MemoryDDL creates the memory log: vector-indexed, soft-deleted facts.
const MemoryDDL = `
CREATE STREAM IF NOT EXISTS memory (
    id string DEFAULT uuid(),
    timestamp datetime64(3) DEFAULT now64(3),

    memory_type string,
    category string,

    content string,
    source_session_id string,

    embedding array(float32),

    importance float32,
    is_deleted bool DEFAULT false
)
SETTINGS event_time_column='timestamp';
`

// ToolLogsDDL creates the tool log: one record per tool invocation.
const ToolLogsDDL = `
CREATE STREAM IF NOT EXISTS tool_logs (
    id string DEFAULT uuid(),
    timestamp datetime64(3) DEFAULT now64(3),

    session_id string,
    llm_request_id string,

    tool_name string,
    skill_name string,
    arguments string,

    status string,
    result_preview string,
    error_message string DEFAULT '',

    duration_ms int32 DEFAULT 0
)
SETTINGS event_time_column='timestamp';
`

// EventsDDL creates the event log: health and diagnostic records.
const EventsDDL = `
CREATE STREAM IF NOT EXISTS events (
    id string DEFAULT uuid(),
    timestamp datetime64(3) DEFAULT now64(3),

    event_type string,
    source string,
    severity string,

    payload string,
    tags array(string)
)
SETTINGS event_time_column='timestamp';
`

// streamDDL pairs each stream name with its creation statement, in the
// order they should be provisioned.
var streamDDL = []struct {
	Name string
	DDL  string
}{
	{"messages", MessagesDDL},
	{"llm_logs", LLMLogsDDL},
	{"tool_logs", ToolLogsDDL},
	{"memory", MemoryDDL},
	{"events", EventsDDL},
}

// requiredColumns lists the columns the initializer verifies are present
// when a stream already exists, so schema drift fails fast instead of
// silently dropping fields at write time.
var requiredColumns = map[string][]string{
	"messages": {"id", "timestamp", "source", "target", "session_id", "message_type", "content", "user_id", "channel_metadata", "priority"},
	"llm_logs": {"id", "timestamp", "session_id", "model", "provider", "input_tokens", "output_tokens", "total_tokens",
		"estimated_cost_usd", "latency_ms", "time_to_first_token_ms", "system_prompt_hash", "user_message_preview",
		"assistant_response_preview", "tools_called", "tool_call_count", "status", "error_message"},
	"memory": {"id", "timestamp", "memory_type", "category", "content", "source_session_id", "embedding", "importance", "is_deleted"},
	"tool_logs": {"id", "timestamp", "session_id", "llm_request_id", "tool_name", "skill_name", "arguments",
		"status", "result_preview", "error_message", "duration_ms"},
	"events": {"id", "timestamp", "event_type", "source", "severity", "payload", "tags"},
}
