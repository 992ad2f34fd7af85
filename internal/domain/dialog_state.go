package domain

import (
	"strconv"
	"time"
)

// DialogFlow identifies the multi-step interaction a user is in.
type DialogFlow string

const (
	FlowNone         DialogFlow = ""
	FlowRegistration DialogFlow = "registration"
	FlowSubmission   DialogFlow = "submission"
	FlowSupport      DialogFlow = "support"
)

// DialogStep is the current step inside a flow.
type DialogStep string

const (
	StepAwaitSurname           DialogStep = "await_surname"
	StepAwaitGivenName         DialogStep = "await_given_name"
	StepAwaitParticipationMode DialogStep = "await_participation_mode"
	StepAwaitFamilySize        DialogStep = "await_family_size"
	StepAwaitHasChildren       DialogStep = "await_has_children"
	StepAwaitChildAges         DialogStep = "await_child_ages"
	StepDone                   DialogStep = "done"

	StepAwaitReport         DialogStep = "await_report"
	StepAwaitSupportMessage DialogStep = "await_support_message"
)

// Field keys collected during registration.
const (
	FieldSurname     = "surname"
	FieldGivenName   = "given_name"
	FieldMode        = "mode"
	FieldFamilySize  = "family_size"
	FieldHasChildren = "has_children"
)

// DialogState is the persisted pointer to a user's current flow.
type DialogState struct {
	UserID    int64
	Flow      DialogFlow
	Step      DialogStep
	TaskID    *int64
	Fields    map[string]string
	UpdatedAt time.Time
}

// NewDialogState starts a flow at the given step.
func NewDialogState(userID int64, flow DialogFlow, step DialogStep) *DialogState {
	return &DialogState{UserID: userID, Flow: flow, Step: step, Fields: map[string]string{}}
}

// Field returns a collected value.
func (d *DialogState) Field(key string) string {
	if d == nil || d.Fields == nil {
		return ""
	}
	return d.Fields[key]
}

// SetField stores a collected value.
func (d *DialogState) SetField(key, value string) {
	if d.Fields == nil {
		d.Fields = map[string]string{}
	}
	d.Fields[key] = value
}

// IntField parses a collected integer value.
func (d *DialogState) IntField(key string) (int, bool) {
	n, err := strconv.Atoi(d.Field(key))
	return n, err == nil
}

// Clone returns a deep copy.
func (d *DialogState) Clone() *DialogState {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Fields = make(map[string]string, len(d.Fields))
	for k, v := range d.Fields {
		clone.Fields[k] = v
	}
	if d.TaskID != nil {
		id := *d.TaskID
		clone.TaskID = &id
	}
	return &clone
}
