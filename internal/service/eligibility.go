package service

// EligibilityChecker decides whether a pass history satisfies a unit's
// prerequisite set. It is an interface so alternative policies (e.g. a
// transitive closure over the prerequisite graph) can be swapped in
// without touching the admission flow.
type EligibilityChecker interface {
	Eligible(prerequisiteIDs, passedUnitIDs []string) bool
}

// DirectPrerequisiteChecker requires every direct prerequisite to appear
// in the pass history. Prerequisites of prerequisites are not chased;
// the admission gate on each ancestor unit already enforced them when it
// was taken.
type DirectPrerequisiteChecker struct{}

// Eligible reports whether all prerequisiteIDs are present in passedUnitIDs.
func (DirectPrerequisiteChecker) Eligible(prerequisiteIDs, passedUnitIDs []string) bool {
	if len(prerequisiteIDs) == 0 {
		return true
	}
	passed := make(map[string]struct{}, len(passedUnitIDs))
	for _, id := range passedUnitIDs {
		passed[id] = struct{}{}
	}
	for _, id := range prerequisiteIDs {
		if _, ok := passed[id]; !ok {
			return false
		}
	}
	return true
}

// slotsOverlap reports whether the two slot sets share any identifier.
func slotsOverlap(a, b []int) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	seen := make(map[int]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; ok {
			return true
		}
	}
	return false
}
