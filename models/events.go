package models

// Publish stream stages, in emission order. The final event is one of
// complete, conflicts_detected, or error.
const (
	StageParsing           = "parsing"
	StageParsed            = "parsed"
	StageChunking          = "chunking"
	StageChunked           = "chunked"
	StageEmbedding         = "embedding"
	StageEmbedded          = "embedded"
	StageAnalyzing         = "analyzing"
	StageAnalyzed          = "analyzed"
	StagePublishing        = "publishing"
	StageConflictsDetected = "conflicts_detected"
	StageComplete          = "complete"
	StageError             = "error"
)

// ProgressEvent is one server-sent event of the publish stream.
// Extra fields are flattened into the JSON object alongside stage/progress.
type ProgressEvent struct {
	Stage    string         `json:"stage"`
	Message  string         `json:"message,omitempty"`
	Progress int            `json:"progress"`
	Extra    map[string]any `json:"-"`
}

// MarshalMap flattens the event into a single JSON-ready map.
func (e ProgressEvent) MarshalMap() map[string]any {
	out := make(map[string]any, len(e.Extra)+3)
	for k, v := range e.Extra {
		out[k] = v
	}
	out["stage"] = e.Stage
	out["progress"] = e.Progress
	if e.Message != "" {
		out["message"] = e.Message
	}
	return out
}
