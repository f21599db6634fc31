// Package model defines core data structures for apexusage.
package model

// Kind identifies the artifact category a referencing file belongs to.
type Kind string

const (
	Apex     Kind = "Apex"
	Trigger  Kind = "Triggers"
	Flow     Kind = "Flows"
	Bundle   Kind = "LWC"
	Metadata Kind = "Metadata"
)

// Kinds lists every artifact kind in report order.
var Kinds = []Kind{Apex, Flow, Bundle, Trigger, Metadata}

// FileEntry is a candidate file selected by the walker.
type FileEntry struct {
	Path string // Relative to repo root, slash separated
	Kind Kind
	Size int64
}

// UsedBy holds the referencing artifact names for one target class,
// one sorted list per kind. Lists are never nil.
type UsedBy struct {
	Apex     []string `json:"Apex"`
	Flows    []string `json:"Flows"`
	LWC      []string `json:"LWC"`
	Triggers []string `json:"Triggers"`
	Metadata []string `json:"Metadata"`
}

// Get returns the list recorded for kind.
func (u *UsedBy) Get(kind Kind) []string {
	switch kind {
	case Apex:
		return u.Apex
	case Flow:
		return u.Flows
	case Bundle:
		return u.LWC
	case Trigger:
		return u.Triggers
	case Metadata:
		return u.Metadata
	}
	return nil
}

// Set replaces the list recorded for kind.
func (u *UsedBy) Set(kind Kind, names []string) {
	switch kind {
	case Apex:
		u.Apex = names
	case Flow:
		u.Flows = names
	case Bundle:
		u.LWC = names
	case Trigger:
		u.Triggers = names
	case Metadata:
		u.Metadata = names
	}
}

// Total returns the number of referencing artifacts across all kinds.
func (u *UsedBy) Total() int {
	return len(u.Apex) + len(u.Flows) + len(u.LWC) + len(u.Triggers) + len(u.Metadata)
}

// UsageEntry is the reverse-usage record for a single target class.
type UsageEntry struct {
	Class  string `json:"class"`
	UsedBy UsedBy `json:"usedBy"`
}

// Report is a finished analysis, ready for serialization.
type Report struct {
	Repo    string
	Entries []UsageEntry
}
