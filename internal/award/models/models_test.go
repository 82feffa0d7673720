package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "trustline/pkg/domain-errors"
)

func TestLevelFor(t *testing.T) {
	cases := []struct {
		total int
		want  Level
	}{
		{0, LevelUnverified},
		{49, LevelUnverified},
		{50, LevelMedium},
		{79, LevelMedium},
		{80, LevelTrusted},
		{135, LevelTrusted},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LevelFor(tc.total), "total %d", tc.total)
	}
}

func TestBreakdownReplacesCategory(t *testing.T) {
	var b Breakdown
	b.Set(CategoryEmail, EmailPoints)
	b.Set(CategoryAddress, 10)
	b.Set(CategoryAddress, 25)

	score := ScoreOf(b)
	assert.Equal(t, 25, score.Breakdown.Get(CategoryAddress))
	assert.Equal(t, 35, score.Total)
	assert.Equal(t, LevelUnverified, score.Level)
}

func TestCategoryPoints(t *testing.T) {
	assert.Equal(t, 15, PhonePointsFor(6))
	assert.Equal(t, 10, PhonePointsFor(5))
	assert.Equal(t, 40, SocialProfiles{Google: true, Twitter: true, LinkedIn: true}.Points())
	assert.Equal(t, 20, SocialProfiles{LinkedIn: true}.Points())
	assert.Equal(t, 40, RefereePointsFor(2))
	assert.Equal(t, 40, RefereePointsFor(3), "only two referees count")
	assert.Zero(t, RefereePointsFor(-1))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("referee")
	require.NoError(t, err)
	assert.Equal(t, CategoryReferee, c)

	_, err = ParseCategory("passport")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
