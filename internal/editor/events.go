package editor

// Event kinds passed to an EventFunc.
const (
	EventModeChanged     = "mode.changed"
	EventFieldChanged    = "field.changed"
	EventSchemaUpdated   = "schema.updated"
	EventUploadStarted   = "upload.started"
	EventUploadCompleted = "upload.completed"
	EventUploadFailed    = "upload.failed"
	EventDocumentSaved   = "document.saved"
)

// EventFunc observes session transitions. It is called without the session
// lock held, so it may read the session back.
type EventFunc func(kind string, attrs map[string]string)

func (s *Session) emit(kind string, attrs map[string]string) {
	if s.onEvent == nil {
		return
	}
	s.onEvent(kind, attrs)
}
