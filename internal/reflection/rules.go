package reflection

import (
	"fmt"

	"github.com/kafadas/kinjo/internal/narrative"
)

// Rule names the deterministic narrative chosen for an aggregate.
type Rule string

const (
	RuleQuiet            Rule = "quiet"
	RuleGivenSkew        Rule = "given_skew"
	RuleReceivedSkew     Rule = "received_skew"
	RuleDominantCategory Rule = "dominant_category"
	RuleDiversePeople    Rule = "diverse_people"
	RuleBalanced         Rule = "balanced"
)

// Thresholds for rule selection.
const (
	skewMinTotal        = 4
	skewShare           = 0.75
	dominantCategoryPct = 50.0
	diversePeopleMin    = 5
)

// Quiet-period text, also used when regenerating an empty range.
const (
	QuietSummary    = "This was a quiet stretch with no moments logged. That's okay; reflection can start with a single small act."
	QuietSuggestion = "Try noting one kind moment, given or received, in the next few days."
)

// SelectRule picks the narrative rule for c. It depends on c alone.
func SelectRule(c *ComputedAggregate) Rule {
	switch {
	case c.Total == 0:
		return RuleQuiet
	case c.Total >= skewMinTotal && float64(c.Given) >= skewShare*float64(c.Total):
		return RuleGivenSkew
	case c.Total >= skewMinTotal && float64(c.Received) >= skewShare*float64(c.Total):
		return RuleReceivedSkew
	case c.TopCategory != nil && len(c.Categories) > 1 && c.TopCategory.Pct >= dominantCategoryPct:
		return RuleDominantCategory
	case c.UniquePeople >= diversePeopleMin:
		return RuleDiversePeople
	default:
		return RuleBalanced
	}
}

// RuleNarrative renders the narrative for the rule SelectRule picks.
func RuleNarrative(c *ComputedAggregate) *narrative.Narrative {
	switch SelectRule(c) {
	case RuleQuiet:
		return &narrative.Narrative{Summary: QuietSummary, Suggestions: []string{QuietSuggestion}}
	case RuleGivenSkew:
		return &narrative.Narrative{
			Summary: fmt.Sprintf("You gave kindness %d times out of %d moments. You have been showing up for others.", c.Given, c.Total),
			Suggestions: []string{
				"Notice the kindness others show you, too; receiving counts.",
				"Take a moment for yourself this week.",
			},
		}
	case RuleReceivedSkew:
		return &narrative.Narrative{
			Summary: fmt.Sprintf("You received kindness %d times out of %d moments. People around you are looking out for you.", c.Received, c.Total),
			Suggestions: []string{
				"Consider passing one of those kindnesses forward.",
				"A short thank-you note can close the loop.",
			},
		}
	case RuleDominantCategory:
		return &narrative.Narrative{
			Summary: fmt.Sprintf("%s made up %.1f%% of your moments across %d active days.", c.TopCategory.Name, c.TopCategory.Pct, c.ActiveDays),
			Suggestions: []string{
				"Try a kind act in a category you have not logged lately.",
			},
		}
	case RuleDiversePeople:
		return &narrative.Narrative{
			Summary: fmt.Sprintf("Your %d moments involved %d different people. Your kindness reaches widely.", c.Total, c.UniquePeople),
			Suggestions: []string{
				"Reconnect with someone you have not seen in a while.",
			},
		}
	default:
		return &narrative.Narrative{
			Summary: fmt.Sprintf("You logged %d moments on %d days, %d given and %d received.", c.Total, c.ActiveDays, c.Given, c.Received),
			Suggestions: []string{
				"Keep the rhythm going; small acts add up.",
			},
		}
	}
}
