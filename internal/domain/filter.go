package domain

import "time"

// FilterCriteria holds the keyword and date rules of a single filter.
// Keyword comparisons are case-insensitive substring checks.
type FilterCriteria struct {
	TitleIncludes       []string
	TitleExcludes       []string
	DescriptionIncludes []string
	DescriptionExcludes []string
	MinDate             *time.Time
	MaxDate             *time.Time
}

// Empty reports whether no criteria field is set.
func (c FilterCriteria) Empty() bool {
	return len(c.TitleIncludes) == 0 &&
		len(c.TitleExcludes) == 0 &&
		len(c.DescriptionIncludes) == 0 &&
		len(c.DescriptionExcludes) == 0 &&
		c.MinDate == nil &&
		c.MaxDate == nil
}

// Filter is a named, toggleable set of criteria managed by the user.
type Filter struct {
	ID        string
	Name      string
	Enabled   bool
	Criteria  FilterCriteria
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Match pairs an item with every enabled filter that accepted it.
type Match struct {
	Item    CandidateItem
	Filters []Filter
}

// FilterNames lists matched filter names in match order.
func (m Match) FilterNames() []string {
	names := make([]string, 0, len(m.Filters))
	for _, f := range m.Filters {
		names = append(names, f.Name)
	}
	return names
}
