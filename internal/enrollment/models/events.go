package models

import (
	"time"

	id "careon/pkg/domain"
)

// EventType names an outbound lifecycle notification.
type EventType string

const (
	EventSubmitted EventType = "enrollment.submitted"
	EventApproved  EventType = "enrollment.approved"
	EventRejected  EventType = "enrollment.rejected"
)

// Notification carries the contact fields downstream messaging needs.
type Notification struct {
	Type               EventType        `json:"type"`
	ApplicationID      id.ApplicationID `json:"application_id"`
	UserID             id.UserID        `json:"user_id"`
	RepresentativeName string           `json:"representative_name"`
	PhoneNumber        string           `json:"phone_number"`
	BusinessName       string           `json:"business_name,omitempty"`
	Status             Status           `json:"status"`
	Notes              string           `json:"notes,omitempty"`
	OccurredAt         time.Time        `json:"occurred_at"`
}

// NotificationFor snapshots the contact fields of a after a transition.
func NotificationFor(t EventType, a *Application, now time.Time) Notification {
	return Notification{
		Type:               t,
		ApplicationID:      a.ID(),
		UserID:             a.UserID(),
		RepresentativeName: a.Representative().Name,
		PhoneNumber:        a.Representative().PhoneNumber,
		BusinessName:       a.Business().Name,
		Status:             a.Status(),
		Notes:              a.ReviewerNotes(),
		OccurredAt:         now,
	}
}
