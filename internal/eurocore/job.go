package eurocore

import (
	"fmt"
	"time"

	kit "eurobot/internal/transport"
)

// Action is a dispatch operation as the eurocore API names it.
type Action string

const (
	ActionAdd    Action = "add"
	ActionEdit   Action = "edit"
	ActionRemove Action = "remove"
)

func (a Action) Valid() bool {
	switch a {
	case ActionAdd, ActionEdit, ActionRemove:
		return true
	}
	return false
}

// Status is a job's lifecycle state. Transitions are queued -> success and
// queued -> failure only; terminal states never change.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Job is one tracked dispatch request with evolving status.
//
// A Job is created at submission, mutated only through Registry.ApplyUpdate,
// and leaves the active set once terminal and rendered.
type Job struct {
	ID         int64
	Action     Action
	Status     Status
	CreatedAt  time.Time
	ModifiedAt time.Time

	// DispatchID is the NationStates dispatch id, 0 until the remote system
	// assigns one (and always 0 for remove jobs).
	DispatchID int64
	// Error is set only when Status is failure.
	Error string

	Title  string
	Nation string

	InitiatorID   int64
	InitiatorName string

	// NotifyOnCompletion pings the initiator when the job turns terminal.
	NotifyOnCompletion bool

	// RenderTarget is the outbound message this job's status is rendered
	// into. Set once, right after submission.
	RenderTarget kit.MessageRef
}

// DispatchURL returns the public page for a published dispatch.
func DispatchURL(dispatchID int64) string {
	return fmt.Sprintf("https://www.nationstates.net/page=dispatch/id=%d", dispatchID)
}

// Category is an NS dispatch category choice offered to users.
type Category struct {
	Name        string
	Subcategory int
}

// Categories lists the dispatch categories eurocore accepts.
var Categories = []Category{
	{Name: "Bulletin: Policy", Subcategory: 305},
	{Name: "Bulletin: News", Subcategory: 315},
	{Name: "Bulletin: Opinion", Subcategory: 325},
	{Name: "Bulletin: Campaign", Subcategory: 385},
	{Name: "Meta: Gameplay", Subcategory: 835},
	{Name: "Meta: Reference", Subcategory: 845},
}

// CategoryBySubcategory resolves a subcategory code to its table entry.
func CategoryBySubcategory(code int) (Category, bool) {
	for _, c := range Categories {
		if c.Subcategory == code {
			return c, true
		}
	}
	return Category{}, false
}

// MainCategory derives the wire-level category from a subcategory code:
// the leading digit (305 -> 3, 835 -> 8).
func MainCategory(subcategory int) int {
	n := subcategory
	for n >= 10 {
		n /= 10
	}
	return n
}
