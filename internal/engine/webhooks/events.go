package webhooks

// EventAll subscribes a webhook to every event type.
const EventAll = "*"

// Event types emitted by the platform. Subscriptions are validated
// against this set at creation time.
const (
	EventSpacecraftCreated             = "spacecraft.created"
	EventSpacecraftUpdated             = "spacecraft.updated"
	EventSpacecraftDeleted             = "spacecraft.deleted"
	EventComplianceAssessmentCompleted = "compliance.assessment.completed"
	EventComplianceStatusChanged       = "compliance.status.changed"
	EventDocumentUploaded              = "document.uploaded"
	EventReportGenerated               = "report.generated"
)

var knownEvents = map[string]bool{
	EventAll:                           true,
	EventSpacecraftCreated:             true,
	EventSpacecraftUpdated:             true,
	EventSpacecraftDeleted:             true,
	EventComplianceAssessmentCompleted: true,
	EventComplianceStatusChanged:       true,
	EventDocumentUploaded:              true,
	EventReportGenerated:               true,
}

func IsValidEvent(event string) bool {
	return knownEvents[event]
}
