package enums

// EventStatus reflects the catalog publishing workflow.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
)

var validEventStatuses = newSet("event status",
	EventStatusDraft,
	EventStatusPublished,
)

// String implements fmt.Stringer.
func (e EventStatus) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EventStatus.
func (e EventStatus) IsValid() bool {
	return validEventStatuses.has(e)
}

// ParseEventStatus converts raw input into an EventStatus.
func ParseEventStatus(value string) (EventStatus, error) {
	return validEventStatuses.parse(value)
}
