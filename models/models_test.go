package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingLike(t *testing.T) {
	assert.True(t, StatusPending.PendingLike())
	assert.True(t, StatusImportant.PendingLike())
	assert.False(t, StatusAnswered.PendingLike())
	assert.False(t, QuestionStatus("deleted").Valid())
}

func TestTally(t *testing.T) {
	var stats QuestionStats
	stats.Tally(Question{Status: StatusPending})
	stats.Tally(Question{Status: StatusImportant})
	stats.Tally(Question{Status: StatusAnswered})
	stats.Tally(Question{Status: StatusImportant, Deleted: true})

	assert.Equal(t, QuestionStats{Total: 4, Pending: 1, Answered: 1, Important: 1, Deleted: 1, PendingTotal: 2}, stats)
	assert.EqualValues(t, 3, stats.Active())
}

func TestPassword(t *testing.T) {
	var u User
	require.NoError(t, u.SetPassword("hunter22"))
	assert.NoError(t, u.CheckPassword("hunter22"))
	assert.Error(t, u.CheckPassword("hunter23"))
}

func TestClassNameKey(t *testing.T) {
	assert.Equal(t, "data structures", ClassNameKey("  Data Structures "))
	assert.True(t, RoleTA.Valid())
	assert.False(t, Role("ta").Valid())
}
