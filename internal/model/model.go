package model

import "encoding/json"

// EventType distinguishes events from tasks. The data shape is identical for
// both; the tag only drives filtering and display styling.
type EventType string

const (
	TypeEvent EventType = "event"
	TypeTask  EventType = "task"
)

// Valid reports whether t is one of the known entry types.
func (t EventType) Valid() bool {
	return t == TypeEvent || t == TypeTask
}

// Frequency is the recurrence period of a recurring event.
type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
)

// RecurrenceEnd describes how a recurrence terminates.
type RecurrenceEnd string

const (
	RecurrenceEndDate       RecurrenceEnd = "date"
	RecurrenceEndIndefinite RecurrenceEnd = "indefinite"
)

// RecurrenceRule exists only on recurring events.
type RecurrenceRule struct {
	Frequency Frequency     `json:"frequency"`
	EndType   RecurrenceEnd `json:"endType"`
	// EndDate is a YYYY-MM-DD calendar date; only meaningful when
	// EndType == RecurrenceEndDate.
	EndDate string `json:"endDate,omitempty"`
}

// Participant is owned by its parent event. Slice order is significant: it
// defines the task rotation order.
type Participant struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Task  string `json:"task"`
}

// Attachment holds file contents inline as a base64 data URI.
type Attachment struct {
	Name    string `json:"name"`
	DataURL string `json:"dataUrl"`
	Type    string `json:"type"`
}

// DiscussionMessage is one entry of an event's append-only discussion thread.
type DiscussionMessage struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
	// Timestamp is an ISO-8601 instant assigned at append time.
	Timestamp string `json:"timestamp"`
}

// Event is the master record: the single persisted source of truth for an
// event or task, recurring or not. Field names in JSON mirror the browser
// build of the application so exported payloads round-trip unchanged.
type Event struct {
	// ID is assigned at creation and immutable thereafter.
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Type  EventType `json:"type"`

	// Date and EndDate are YYYY-MM-DD local calendar dates, EndDate >= Date.
	Date    string `json:"date"`
	EndDate string `json:"endDate"`

	// Time and EndTime are optional HH:MM strings; empty when IsAllDay.
	Time     string `json:"time"`
	EndTime  string `json:"endTime"`
	IsAllDay bool   `json:"isAllDay"`

	Note     string `json:"note"`
	Location string `json:"location"`

	IsRecurring bool            `json:"isRecurring"`
	Recurrence  *RecurrenceRule `json:"recurrence"`

	AutoRotateTasks  bool `json:"autoRotateTasks"`
	EnableDiscussion bool `json:"enableDiscussion"`

	Discussion   []DiscussionMessage `json:"discussion"`
	Participants []Participant       `json:"participants"`
	Attachments  []Attachment        `json:"attachments"`
}

// Clone returns a deep copy of the event. The store hands out clones so that
// callers can never mutate the collection behind its back.
func (e Event) Clone() Event {
	out := e
	if e.Recurrence != nil {
		r := *e.Recurrence
		out.Recurrence = &r
	}
	if e.Discussion != nil {
		out.Discussion = append([]DiscussionMessage(nil), e.Discussion...)
	}
	if e.Participants != nil {
		out.Participants = append([]Participant(nil), e.Participants...)
	}
	if e.Attachments != nil {
		out.Attachments = append([]Attachment(nil), e.Attachments...)
	}
	return out
}

// Occurrence is a derived, never-persisted projection of an Event for one
// specific calendar date.
type Occurrence struct {
	Event
	// OccurrenceIndex is the 0-based count of recurrence periods elapsed
	// between the start date and the matched date.
	OccurrenceIndex int `json:"_occurrenceIndex"`
}

// EventPatch carries a partial update for an event. Nil fields are left
// untouched by Apply; this replaces the original's object-spread merge with
// an auditable field-by-field override.
type EventPatch struct {
	Title    *string    `json:"title"`
	Type     *EventType `json:"type"`
	Date     *string    `json:"date"`
	EndDate  *string    `json:"endDate"`
	Time     *string    `json:"time"`
	EndTime  *string    `json:"endTime"`
	IsAllDay *bool      `json:"isAllDay"`
	Note     *string    `json:"note"`
	Location *string    `json:"location"`

	IsRecurring *bool           `json:"isRecurring"`
	Recurrence  *RecurrenceRule `json:"recurrence"`
	// RecurrenceSet distinguishes "recurrence absent from the patch" from an
	// explicit null that clears the rule. Populated by UnmarshalJSON.
	RecurrenceSet bool `json:"-"`

	AutoRotateTasks  *bool `json:"autoRotateTasks"`
	EnableDiscussion *bool `json:"enableDiscussion"`

	Participants []Participant       `json:"participants"`
	Attachments  []Attachment        `json:"attachments"`
	Discussion   []DiscussionMessage `json:"discussion"`
}

// UnmarshalJSON records whether the "recurrence" key was present at all, so
// that an explicit "recurrence": null can clear an existing rule while an
// absent key preserves it.
func (p *EventPatch) UnmarshalJSON(data []byte) error {
	type plain EventPatch
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*p = EventPatch(v)
	_, p.RecurrenceSet = keys["recurrence"]
	return nil
}

// Apply overlays the patch onto e. The ID is never touched: it is immutable
// by construction and not part of the patch.
func (p EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.EndDate != nil {
		e.EndDate = *p.EndDate
	}
	if p.Time != nil {
		e.Time = *p.Time
	}
	if p.EndTime != nil {
		e.EndTime = *p.EndTime
	}
	if p.IsAllDay != nil {
		e.IsAllDay = *p.IsAllDay
	}
	if p.Note != nil {
		e.Note = *p.Note
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.IsRecurring != nil {
		e.IsRecurring = *p.IsRecurring
	}
	if p.RecurrenceSet || p.Recurrence != nil {
		e.Recurrence = p.Recurrence
	}
	if p.AutoRotateTasks != nil {
		e.AutoRotateTasks = *p.AutoRotateTasks
	}
	if p.EnableDiscussion != nil {
		e.EnableDiscussion = *p.EnableDiscussion
	}
	if p.Participants != nil {
		e.Participants = append([]Participant(nil), p.Participants...)
	}
	if p.Attachments != nil {
		e.Attachments = append([]Attachment(nil), p.Attachments...)
	}
	if p.Discussion != nil {
		e.Discussion = append([]DiscussionMessage(nil), p.Discussion...)
	}
}
