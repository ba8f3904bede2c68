package store

import "time"

type ExperimentState string

const (
	StateRunning   ExperimentState = "running"
	StatePaused    ExperimentState = "paused"
	StateCompleted ExperimentState = "completed"
)

// Device types recorded on a visit.
const (
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
)

// DefaultSource is the traffic source for visits that arrive without one.
const DefaultSource = "direct"

type Experiment struct {
	ID             int64
	Name           string
	PropertyID     string    // Optional, the landing page's property
	Variants       []string  // Decoded from JSON
	Weights        []float64 // Optional, decoded from JSON
	ConversionGoal string
	State          ExperimentState
	WinnerVariant  string // Empty until a winner is declared
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasVariant reports whether label is one of the experiment's variants.
func (e *Experiment) HasVariant(label string) bool {
	for _, v := range e.Variants {
		if v == label {
			return true
		}
	}
	return false
}

// Visit is one visitor session on one variant: how far down the landing
// page funnel the visitor got and how long they stayed.
type Visit struct {
	ID             string `csv:"id" json:"id" yaml:"id"`
	Experiment     string `csv:"experiment" json:"experiment" yaml:"experiment"`
	Variant        string `csv:"variant" json:"variant" yaml:"variant"`
	SessionID      string `csv:"session_id" json:"session_id" yaml:"session_id"`
	PropertyID     string `csv:"property_id,omitempty" json:"property_id,omitempty" yaml:"property_id,omitempty"`
	DeviceType     string `csv:"device_type,omitempty" json:"device_type,omitempty" yaml:"device_type,omitempty"`
	Source         string `csv:"source,omitempty" json:"source,omitempty" yaml:"source,omitempty"`
	ViewedHero     bool   `csv:"viewed_hero" json:"viewed_hero" yaml:"viewed_hero"`
	ViewedOffer    bool   `csv:"viewed_offer" json:"viewed_offer" yaml:"viewed_offer"`
	ViewedBenefits bool   `csv:"viewed_benefits" json:"viewed_benefits" yaml:"viewed_benefits"`
	ViewedProcess  bool   `csv:"viewed_process" json:"viewed_process" yaml:"viewed_process"`
	ViewedForm     bool   `csv:"viewed_form" json:"viewed_form" yaml:"viewed_form"`
	SubmittedForm  bool   `csv:"submitted_form" json:"submitted_form" yaml:"submitted_form"`
	// TimeOnPage is in seconds. Nil means the page never reported it.
	TimeOnPage *float64  `csv:"time_on_page,omitempty" json:"time_on_page,omitempty" yaml:"time_on_page,omitempty"`
	CreatedAt  time.Time `csv:"created_at" json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time `csv:"-" json:"-" yaml:"-"`
}

// Seconds returns the time on page, 0 when absent.
func (v Visit) Seconds() float64 {
	if v.TimeOnPage == nil {
		return 0
	}
	return *v.TimeOnPage
}

// EventType is an interaction tracked on a landing page.
type EventType string

const (
	EventPageView          EventType = "page_view"
	EventEmailSubmitted    EventType = "email_submitted"
	EventOfferRevealed     EventType = "offer_revealed"
	EventClickedAccept     EventType = "clicked_accept"
	EventClickedQuestions  EventType = "clicked_questions"
	EventClickedInterested EventType = "clicked_interested"
	EventFormStarted       EventType = "form_started"
	EventFormSubmitted     EventType = "form_submitted"
	EventPhoneCollected    EventType = "phone_collected"
	EventExit              EventType = "exit"
)

var eventTypes = map[EventType]bool{
	EventPageView:          true,
	EventEmailSubmitted:    true,
	EventOfferRevealed:     true,
	EventClickedAccept:     true,
	EventClickedQuestions:  true,
	EventClickedInterested: true,
	EventFormStarted:       true,
	EventFormSubmitted:     true,
	EventPhoneCollected:    true,
	EventExit:              true,
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return eventTypes[t]
}

type Event struct {
	ID         string
	Experiment string
	Variant    string
	SessionID  string
	Type       EventType
	Metadata   map[string]any
	CreatedAt  time.Time
}

// EventCount is the number of events of one type seen on one variant.
type EventCount struct {
	Variant string
	Type    EventType
	Count   int
}
