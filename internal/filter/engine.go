// Package filter evaluates feed items against user filters.
//
// Two modes share one predicate: ApplyAll keeps items accepted by every
// enabled filter (display), MatchAny reports which enabled filters accepted
// an item (notification).
package filter

import (
	"strings"

	"FeedWatcher/internal/domain"
)

// Matches reports whether the item satisfies a single filter's criteria.
// A filter without criteria matches everything.
func Matches(item domain.CandidateItem, criteria domain.FilterCriteria) bool {
	title := strings.ToLower(item.Title)
	if !containsAll(title, criteria.TitleIncludes) {
		return false
	}
	if containsAny(title, criteria.TitleExcludes) {
		return false
	}

	description := strings.ToLower(item.Text())
	if !containsAll(description, criteria.DescriptionIncludes) {
		return false
	}
	if containsAny(description, criteria.DescriptionExcludes) {
		return false
	}

	return withinDates(item, criteria)
}

// ApplyAll keeps items accepted by every enabled filter, preserving order.
// Without enabled filters all items pass.
func ApplyAll(items []domain.CandidateItem, filters []domain.Filter) []domain.CandidateItem {
	enabled := Enabled(filters)
	if len(enabled) == 0 {
		return items
	}

	kept := make([]domain.CandidateItem, 0, len(items))
	for _, item := range items {
		accepted := true
		for _, f := range enabled {
			if !Matches(item, f.Criteria) {
				accepted = false
				break
			}
		}
		if accepted {
			kept = append(kept, item)
		}
	}
	return kept
}

// MatchAny returns the enabled filters accepting the item, in filter order.
// An empty result means no match.
func MatchAny(item domain.CandidateItem, filters []domain.Filter) []domain.Filter {
	var matched []domain.Filter
	for _, f := range filters {
		if !f.Enabled {
			continue
		}
		if Matches(item, f.Criteria) {
			matched = append(matched, f)
		}
	}
	return matched
}

// MatchItems runs MatchAny over items and keeps the matching ones in order.
func MatchItems(items []domain.CandidateItem, filters []domain.Filter) []domain.Match {
	var matches []domain.Match
	for _, item := range items {
		if matched := MatchAny(item, filters); len(matched) > 0 {
			matches = append(matches, domain.Match{Item: item, Filters: matched})
		}
	}
	return matches
}

// Enabled returns the enabled subset of filters.
func Enabled(filters []domain.Filter) []domain.Filter {
	enabled := make([]domain.Filter, 0, len(filters))
	for _, f := range filters {
		if f.Enabled {
			enabled = append(enabled, f)
		}
	}
	return enabled
}

func containsAll(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if !strings.Contains(haystack, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

func containsAny(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// withinDates fails open: items without a publish date skip the range check.
func withinDates(item domain.CandidateItem, criteria domain.FilterCriteria) bool {
	if item.PublishedAt.IsZero() {
		return true
	}
	if criteria.MinDate != nil && item.PublishedAt.Before(*criteria.MinDate) {
		return false
	}
	if criteria.MaxDate != nil && item.PublishedAt.After(*criteria.MaxDate) {
		return false
	}
	return true
}
