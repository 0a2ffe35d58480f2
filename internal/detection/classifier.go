package detection

// Classify maps one event's measurements to a severity tier and response
// action under the given threshold snapshot.
//
// Both thresholds use strict greater-than: a score equal to its threshold
// does not count as exceeded. The function is total over its numeric domain,
// has no side effects, and never fails for any finite input; zero and
// negative values are taken at face value.
func Classify(entropyScore float64, renameCount int, th Thresholds) (Severity, Action) {
	entropyExceeded := entropyScore > th.Entropy
	renameExceeded := renameCount > th.Rename

	switch {
	case entropyExceeded && renameExceeded:
		if th.AutoBlock {
			return SeverityThreat, ActionBlocked
		}
		return SeverityThreat, ActionFlagged
	case entropyExceeded || renameExceeded:
		return SeverityWarning, ActionFlagged
	default:
		return SeveritySafe, ActionIgnored
	}
}
