package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FeedWatcher/internal/domain"
)

func enabledFilter(name string, criteria domain.FilterCriteria) domain.Filter {
	return domain.Filter{ID: name, Name: name, Enabled: true, Criteria: criteria}
}

func TestConjunctiveAndDisjunctiveModesDiverge(t *testing.T) {
	t.Parallel()

	f1 := enabledFilter("F1", domain.FilterCriteria{TitleIncludes: []string{"1080p"}})
	f2 := enabledFilter("F2", domain.FilterCriteria{TitleIncludes: []string{"BluRay"}})
	item := domain.CandidateItem{Identity: "a", Title: "Movie 1080p WEB"}

	kept := ApplyAll([]domain.CandidateItem{item}, []domain.Filter{f1, f2})
	assert.Empty(t, kept, "conjunctive mode must reject an item failing F2")

	matched := MatchAny(item, []domain.Filter{f1, f2})
	require.Len(t, matched, 1)
	assert.Equal(t, "F1", matched[0].Name)
}

func TestExcludeTakesPrecedence(t *testing.T) {
	t.Parallel()

	f := enabledFilter("shows", domain.FilterCriteria{
		TitleIncludes: []string{"Show"},
		TitleExcludes: []string{"CAM"},
	})
	item := domain.CandidateItem{Identity: "a", Title: "Show CAM Rip"}

	assert.Empty(t, ApplyAll([]domain.CandidateItem{item}, []domain.Filter{f}))
	assert.Empty(t, MatchAny(item, []domain.Filter{f}))
}

func TestMatchesKeywordRules(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		item     domain.CandidateItem
		criteria domain.FilterCriteria
		want     bool
	}{
		{
			name:     "empty criteria matches everything",
			item:     domain.CandidateItem{Title: "anything"},
			criteria: domain.FilterCriteria{},
			want:     true,
		},
		{
			name:     "title includes are case-insensitive",
			item:     domain.CandidateItem{Title: "Some.Movie.2160p.BLURAY"},
			criteria: domain.FilterCriteria{TitleIncludes: []string{"bluray", "2160P"}},
			want:     true,
		},
		{
			name:     "every title include must be present",
			item:     domain.CandidateItem{Title: "Some.Movie.2160p"},
			criteria: domain.FilterCriteria{TitleIncludes: []string{"2160p", "HDR"}},
			want:     false,
		},
		{
			name:     "description include falls back to raw content",
			item:     domain.CandidateItem{Title: "x", RawContent: "<p>Dolby Atmos</p>"},
			criteria: domain.FilterCriteria{DescriptionIncludes: []string{"atmos"}},
			want:     true,
		},
		{
			name:     "description exclude rejects",
			item:     domain.CandidateItem{Title: "x", Description: "contains spoilers"},
			criteria: domain.FilterCriteria{DescriptionExcludes: []string{"SPOILER"}},
			want:     false,
		},
		{
			name:     "description set ignores raw content",
			item:     domain.CandidateItem{Title: "x", Description: "plain", RawContent: "atmos"},
			criteria: domain.FilterCriteria{DescriptionIncludes: []string{"atmos"}},
			want:     false,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Matches(tc.item, tc.criteria))
		})
	}
}

func TestMatchesDateRange(t *testing.T) {
	t.Parallel()

	lo := time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)
	hi := time.Date(2025, time.November, 30, 0, 0, 0, 0, time.UTC)
	criteria := domain.FilterCriteria{MinDate: &lo, MaxDate: &hi}

	assert.True(t, Matches(domain.CandidateItem{PublishedAt: lo}, criteria), "min bound is inclusive")
	assert.True(t, Matches(domain.CandidateItem{PublishedAt: hi}, criteria), "max bound is inclusive")
	assert.False(t, Matches(domain.CandidateItem{PublishedAt: lo.Add(-time.Second)}, criteria))
	assert.False(t, Matches(domain.CandidateItem{PublishedAt: hi.Add(time.Second)}, criteria))
	assert.True(t, Matches(domain.CandidateItem{}, criteria), "missing date fails open")
}

func TestApplyAllWithoutEnabledFiltersKeepsEverything(t *testing.T) {
	t.Parallel()

	items := []domain.CandidateItem{{Title: "a"}, {Title: "b"}}
	disabled := domain.Filter{Name: "off", Criteria: domain.FilterCriteria{TitleIncludes: []string{"zzz"}}}

	assert.Equal(t, items, ApplyAll(items, nil))
	assert.Equal(t, items, ApplyAll(items, []domain.Filter{disabled}))
}

func TestMatchItemsPreservesOrderAndSkipsDisabled(t *testing.T) {
	t.Parallel()

	hd := enabledFilter("HD", domain.FilterCriteria{TitleIncludes: []string{"1080p"}})
	all := enabledFilter("All", domain.FilterCriteria{})
	off := domain.Filter{Name: "Off", Criteria: domain.FilterCriteria{}}

	items := []domain.CandidateItem{
		{Identity: "1", Title: "First 720p"},
		{Identity: "2", Title: "Second 1080p"},
	}

	matches := MatchItems(items, []domain.Filter{hd, off, all})
	require.Len(t, matches, 2)
	assert.Equal(t, "1", matches[0].Item.Identity)
	assert.Equal(t, []string{"All"}, matches[0].FilterNames())
	assert.Equal(t, "2", matches[1].Item.Identity)
	assert.Equal(t, []string{"HD", "All"}, matches[1].FilterNames())
}
