package domain

import "time"

// TicketStatus enumerates lifecycle states for support tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "OPEN"
	TicketStatusAssigned TicketStatus = "ASSIGNED"
	TicketStatusResolved TicketStatus = "RESOLVED"
	TicketStatusClosed   TicketStatus = "CLOSED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusAssigned, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether the ticket accepts no further changes.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusClosed
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// SupportTicket is a helpdesk request. AssignedTo is the only field written
// concurrently by different actors.
type SupportTicket struct {
	ID          string
	Subject     string
	Description string
	Category    string
	Priority    TicketPriority
	Status      TicketStatus
	CreatedBy   string
	AssignedTo  *string
	Public      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SupportComment is an append-only reply on a ticket.
type SupportComment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Message   string
	CreatedAt time.Time
}

// status edits allowed through the update endpoint; ASSIGNED from OPEN is
// reachable only through claim or forced assignment.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:     {TicketStatusClosed},
	TicketStatusAssigned: {TicketStatusOpen, TicketStatusResolved, TicketStatusClosed},
	TicketStatusResolved: {TicketStatusClosed, TicketStatusAssigned},
	TicketStatusClosed:   {},
}

// CanTransition reports whether a status edit from s to next is allowed.
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	for _, candidate := range ticketTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}
