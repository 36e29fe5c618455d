package domain

import (
	"regexp"
	"strings"
)

var enumSeparators = regexp.MustCompile(`[\s-]+`)

// NormalizeEnum upper-cases raw and collapses runs of spaces and hyphens
// into a single underscore, so "bi-annual" and "Bi Annual" both read BI_ANNUAL.
func NormalizeEnum(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	return enumSeparators.ReplaceAllString(s, "_")
}

// Enum is a closed set of upper-case values in declared order.
type Enum struct {
	Name   string
	Values []string
}

// Parse normalizes raw and reports whether it belongs to the set.
func (e Enum) Parse(raw string) (string, bool) {
	v := NormalizeEnum(raw)
	for _, allowed := range e.Values {
		if v == allowed {
			return v, true
		}
	}
	return "", false
}

// Message is the validation message listing every allowed value.
func (e Enum) Message() string {
	return "Must be one of: " + strings.Join(e.Values, ", ")
}

const (
	RAGGood    = "GOOD"
	RAGWarning = "WARNING"
	RAGHarm    = "HARM"

	SourcingInternal   = "INTERNAL"
	SourcingThirdParty = "THIRD_PARTY"

	ResultPass      = "PASS"
	ResultFail      = "FAIL"
	ResultPartially = "PARTIALLY"
	ResultNotTested = "NOT_TESTED"
	ResultNotDue    = "NOT_DUE"

	DirectionImproving     = "IMPROVING"
	DirectionStable        = "STABLE"
	DirectionDeteriorating = "DETERIORATING"
)

var (
	ConsumerDutyOutcomes = Enum{Name: "Consumer Duty Outcome", Values: []string{
		"PRODUCTS_AND_SERVICES",
		"PRICE_AND_VALUE",
		"CONSUMER_UNDERSTANDING",
		"CONSUMER_SUPPORT",
		"GOVERNANCE_CULTURE_OVERSIGHT",
	}}
	ControlFrequencies = Enum{Name: "Control Frequency", Values: []string{
		"DAILY", "WEEKLY", "MONTHLY", "QUARTERLY", "BI_ANNUAL", "ANNUAL", "EVENT_DRIVEN",
	}}
	Sourcing = Enum{Name: "Internal or Third Party", Values: []string{
		SourcingInternal, SourcingThirdParty,
	}}
	ControlTypes = Enum{Name: "Control Type", Values: []string{
		"PREVENTATIVE", "DETECTIVE", "CORRECTIVE", "DIRECTIVE",
	}}
	TestingFrequencies = Enum{Name: "Testing Frequency", Values: []string{
		"MONTHLY", "QUARTERLY", "BI_ANNUAL", "ANNUAL",
	}}
	TestResults = Enum{Name: "Test Result", Values: []string{
		ResultPass, ResultFail, ResultPartially, ResultNotTested, ResultNotDue,
	}}
	RAGStatuses = Enum{Name: "RAG Status", Values: []string{
		RAGGood, RAGWarning, RAGHarm,
	}}
	RiskCategories = Enum{Name: "Risk Category", Values: []string{
		"STRATEGIC", "OPERATIONAL", "FINANCIAL", "COMPLIANCE", "CONDUCT", "TECHNOLOGY",
	}}
	DirectionsOfTravel = Enum{Name: "Direction of Travel", Values: []string{
		DirectionImproving, DirectionStable, DirectionDeteriorating,
	}}
)

// RequiresNotes reports whether a test result must carry explanatory notes.
func RequiresNotes(result string) bool {
	return result == ResultFail || result == ResultPartially
}
