package detector

import "regexp"

// NewPattern compiles an operator-supplied pattern for use with
// DetectWithExtra. Unlike mustPattern, a bad regex is a runtime
// configuration error, not a programming error, so it returns an error
// instead of panicking.
func NewPattern(label string, weight int, expr string) (Pattern, error) {
	re, err := regexp.Compile(`(?im)` + expr)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{Label: label, Weight: weight, re: re}, nil
}

// DetectWithExtra scores text against the built-in pattern table plus any
// operator-supplied extra patterns (loaded via internal/config's TOML
// pattern overrides). The built-in table's contract is unaffected: calling
// this with no extras behaves identically to Detect.
func DetectWithExtra(text string, extra []Pattern) InjectionVerdict {
	if text == "" {
		return InjectionVerdict{RiskLevel: RiskNone}
	}

	var labels []string
	score := 0
	for _, p := range patterns {
		if p.re.MatchString(text) {
			labels = append(labels, p.Label)
			score += p.Weight
		}
	}
	for _, p := range extra {
		if p.re != nil && p.re.MatchString(text) {
			labels = append(labels, p.Label)
			score += p.Weight
		}
	}
	if score > 100 {
		score = 100
	}

	verdict := InjectionVerdict{
		RiskLevel:     riskLevelFor(score),
		Score:         score,
		MatchedLabels: labels,
	}
	if verdict.RiskLevel == RiskHigh || verdict.RiskLevel == RiskCritical {
		verdict.Warning = buildWarning(labels)
	}
	return verdict
}
