package model

import (
	"encoding/json"
	"time"

	"github.com/kafadas/kinjo/internal/civil"
)

// Action is the direction of a moment of kindness.
type Action string

const (
	ActionGiven    Action = "given"
	ActionReceived Action = "received"
)

// Valid reports whether a is a known moment action.
func (a Action) Valid() bool { return a == ActionGiven || a == ActionReceived }

// ActionFilter narrows aggregate queries by action.
type ActionFilter string

const (
	ActionBoth         ActionFilter = "both"
	ActionOnlyGiven    ActionFilter = "given"
	ActionOnlyReceived ActionFilter = "received"
)

// Matches reports whether a moment with action a passes the filter.
// The empty filter behaves like ActionBoth.
func (f ActionFilter) Matches(a Action) bool {
	switch f {
	case "", ActionBoth:
		return true
	default:
		return string(f) == string(a)
	}
}

// Valid reports whether f is a known filter value ("" counts as both).
func (f ActionFilter) Valid() bool {
	switch f {
	case "", ActionBoth, ActionOnlyGiven, ActionOnlyReceived:
		return true
	}
	return false
}

// User is the profile the aggregation core reads the timezone from.
type User struct {
	UserID       string    `json:"userId"`
	DisplayName  *string   `json:"displayName,omitempty"`
	TimeZone     string    `json:"timeZone"`
	CreationTime time.Time `json:"creationTime"`
}

// Moment is a single logged act of kindness, given or received.
type Moment struct {
	MomentID     string    `json:"momentId"`
	UserID       string    `json:"userId"`
	HappenedAt   time.Time `json:"happenedAt"`
	Action       Action    `json:"action"`
	CategoryID   *string   `json:"categoryId,omitempty"`
	PersonID     *string   `json:"personId,omitempty"`
	Significance bool      `json:"significance"`
	Tags         []string  `json:"tags,omitempty"`
	Description  string    `json:"description"`
	CreationTime time.Time `json:"creationTime"`
}

// MomentQuery filters the moment log. From and To are inclusive instant bounds.
type MomentQuery struct {
	UserID           string
	From             *time.Time
	To               *time.Time
	Action           ActionFilter
	SignificanceOnly bool
}

// Category groups moments; referenced, never owned, by Moment.
type Category struct {
	CategoryID   string    `json:"categoryId"`
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	SortOrder    int       `json:"sortOrder"`
	CreationTime time.Time `json:"creationTime"`
}

// Person is someone kindness was exchanged with. MergedInto points to the
// person this one was merged into; chains end at a person with no target.
type Person struct {
	PersonID     string    `json:"personId"`
	UserID       string    `json:"userId"`
	DisplayName  string    `json:"displayName"`
	Aliases      []string  `json:"aliases,omitempty"`
	MergedInto   *string   `json:"mergedInto,omitempty"`
	CreationTime time.Time `json:"creationTime"`
}

// Period is a reflection window.
type Period string

const (
	Period7d   Period = "7d"
	Period30d  Period = "30d"
	Period90d  Period = "90d"
	Period365d Period = "365d"
)

// Days returns the window length, or 0 for an unknown period.
func (p Period) Days() int {
	switch p {
	case Period7d:
		return 7
	case Period30d:
		return 30
	case Period90d:
		return 90
	case Period365d:
		return 365
	}
	return 0
}

// Valid reports whether p is one of the supported reflection windows.
func (p Period) Valid() bool { return p.Days() > 0 }

// NarrativeModel records how a reflection's text was produced.
type NarrativeModel string

const (
	ModelRule NarrativeModel = "rule"
	ModelAI   NarrativeModel = "ai"
)

// Reflection is a persisted, period-scoped summary. At most one exists per
// (user, period, range start, range end).
type Reflection struct {
	ReflectionID  string          `json:"reflectionId"`
	UserID        string          `json:"userId"`
	Period        Period          `json:"period"`
	RangeStart    civil.Date      `json:"rangeStart"`
	RangeEnd      civil.Date      `json:"rangeEnd"`
	Summary       string          `json:"summary"`
	Suggestions   []string        `json:"suggestions"`
	Computed      json.RawMessage `json:"computed"`
	Model         NarrativeModel  `json:"model"`
	CreatedAt     time.Time       `json:"createdAt"`
	RegeneratedAt *time.Time      `json:"regeneratedAt,omitempty"`
}

// Streak is cached streak state; always rebuildable from the moment log.
type Streak struct {
	UserID        string      `json:"userId"`
	Current       int         `json:"current"`
	Best          int         `json:"best"`
	LastEntryDate *civil.Date `json:"lastEntryDate,omitempty"`
	ComputedAt    time.Time   `json:"computedAt"`
}
