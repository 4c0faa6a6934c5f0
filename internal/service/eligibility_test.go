package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectPrerequisiteChecker(t *testing.T) {
	checker := DirectPrerequisiteChecker{}

	assert.True(t, checker.Eligible(nil, nil))
	assert.True(t, checker.Eligible([]string{}, []string{"u1"}))
	assert.True(t, checker.Eligible([]string{"u1"}, []string{"u1", "u2"}))
	assert.True(t, checker.Eligible([]string{"u1", "u2"}, []string{"u2", "u1"}))

	assert.False(t, checker.Eligible([]string{"u1"}, nil))
	assert.False(t, checker.Eligible([]string{"u1", "u3"}, []string{"u1", "u2"}))
}

func TestDirectPrerequisiteCheckerIsNotTransitive(t *testing.T) {
	checker := DirectPrerequisiteChecker{}

	// u3 requires u2, u2 requires u1. A student who passed only u2 may
	// take u3: only the direct edge is checked.
	assert.True(t, checker.Eligible([]string{"u2"}, []string{"u2"}))
}

func TestSlotsOverlap(t *testing.T) {
	assert.False(t, slotsOverlap(nil, nil))
	assert.False(t, slotsOverlap([]int{1, 2}, nil))
	assert.False(t, slotsOverlap([]int{1, 2}, []int{3, 4}))
	assert.True(t, slotsOverlap([]int{1, 3}, []int{3, 4}))
	assert.True(t, slotsOverlap([]int{5}, []int{5}))
}
