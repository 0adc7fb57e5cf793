// Package extract pulls coarse patient demographics out of free text.
// The heuristics are intentionally lossy: callers fall back to defaults
// when nothing matches.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Sex is the closed set accepted by the triage engine.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Demographics holds the values recovered from a message. Zero Age and
// empty Sex mean nothing matched.
type Demographics struct {
	Age int
	Sex Sex
}

var agePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d{1,2})\s*(?:years?\s*old|yo)\b`),
	regexp.MustCompile(`\bage\s*(?:is\s*)?(\d{1,2})\b`),
	regexp.MustCompile(`\bi\s*am\s*(\d{1,2})\b`),
}

var (
	malePattern   = regexp.MustCompile(`\b(male|man|boy|he|his|him)\b`)
	femalePattern = regexp.MustCompile(`\b(female|woman|girl|she|hers?)\b`)
)

// ExtractDemographics scans text for first- and third-person age and sex
// phrasing. Ages outside 1-120 are ignored.
func ExtractDemographics(text string) Demographics {
	var d Demographics
	lower := strings.ToLower(text)

	for _, pattern := range agePatterns {
		match := pattern.FindStringSubmatch(lower)
		if match == nil {
			continue
		}
		age, err := strconv.Atoi(match[1])
		if err == nil && age >= 1 && age <= 120 {
			d.Age = age
			break
		}
	}

	// Female phrasing wins when both appear.
	if femalePattern.MatchString(lower) {
		d.Sex = SexFemale
	} else if malePattern.MatchString(lower) {
		d.Sex = SexMale
	}

	return d
}
