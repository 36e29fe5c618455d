// Package importer maps and validates tabular uploads for the compliance
// register. Everything here is pure: reference data is passed in and the
// results are plain values ready for the committer.
package importer

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindControls Kind = "controls"
	KindRisks    Kind = "risks"
	KindMeasures Kind = "measures"
	KindMetrics  Kind = "metrics"
)

var Kinds = []Kind{KindControls, KindRisks, KindMeasures, KindMetrics}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindControls, KindRisks, KindMeasures, KindMetrics:
		return k, nil
	case "mi":
		return KindMetrics, nil
	}
	return "", fmt.Errorf("unknown import kind %q", s)
}

// Field is a canonical column name.
type Field string

const (
	FieldControlName          Field = "controlName"
	FieldControlDescription   Field = "controlDescription"
	FieldBusinessArea         Field = "businessArea"
	FieldControlOwnerEmail    Field = "controlOwnerEmail"
	FieldConsumerDutyOutcome  Field = "consumerDutyOutcome"
	FieldControlFrequency     Field = "controlFrequency"
	FieldInternalOrThirdParty Field = "internalOrThirdParty"
	FieldControlType          Field = "controlType"
	FieldStandingComments     Field = "standingComments"
	FieldTestingFrequency     Field = "testingFrequency"
	FieldAssignedTesterEmail  Field = "assignedTesterEmail"
	FieldSummaryOfTest        Field = "summaryOfTest"
	FieldControlReference     Field = "controlReference"

	FieldRiskName           Field = "riskName"
	FieldRiskDescription    Field = "riskDescription"
	FieldCategory           Field = "category"
	FieldOwnerEmail         Field = "ownerEmail"
	FieldInherentLikelihood Field = "inherentLikelihood"
	FieldInherentImpact     Field = "inherentImpact"
	FieldResidualLikelihood Field = "residualLikelihood"
	FieldResidualImpact     Field = "residualImpact"
	FieldSubCategory        Field = "subCategory"
	FieldDirectionOfTravel  Field = "directionOfTravel"
	FieldRiskReference      Field = "riskReference"

	FieldOutcomeID Field = "outcomeId"
	FieldMeasureID Field = "measureId"
	FieldName      Field = "name"
	FieldOwner     Field = "owner"
	FieldSummary   Field = "summary"
	FieldRAGStatus Field = "ragStatus"

	FieldMetric       Field = "metric"
	FieldCurrentValue Field = "currentValue"
	FieldTargetValue  Field = "targetValue"
)

// FieldSpec describes one canonical column. Synonyms are in normalized form.
type FieldSpec struct {
	Field    Field    `json:"field"`
	Label    string   `json:"label"`
	Required bool     `json:"required"`
	Synonyms []string `json:"synonyms"`
	Example  string   `json:"example,omitempty"`
}

// Catalogue is ordered: earlier fields claim matching headers first.
type Catalogue []FieldSpec

func (c Catalogue) Spec(f Field) (FieldSpec, bool) {
	for _, s := range c {
		if s.Field == f {
			return s, true
		}
	}
	return FieldSpec{}, false
}

func (c Catalogue) Label(f Field) string {
	if s, ok := c.Spec(f); ok {
		return s.Label
	}
	return string(f)
}

func (c Catalogue) Labels() []string {
	out := make([]string, len(c))
	for i, s := range c {
		out[i] = s.Label
	}
	return out
}

var ControlsCatalogue = Catalogue{
	{Field: FieldControlName, Label: "Control Name", Required: true, Synonyms: []string{"controlname", "name", "control"}, Example: "Monthly complaints review"},
	{Field: FieldControlDescription, Label: "Control Description", Required: true, Synonyms: []string{"controldescription", "description"}, Example: "Review of complaint root causes"},
	{Field: FieldBusinessArea, Label: "Business Area", Required: true, Synonyms: []string{"businessarea", "area"}, Example: "Customer Operations"},
	{Field: FieldControlOwnerEmail, Label: "Control Owner Email", Required: true, Synonyms: []string{"controlowneremail", "owneremail", "controlowner", "owner"}, Example: "owner@example.com"},
	{Field: FieldConsumerDutyOutcome, Label: "Consumer Duty Outcome", Required: true, Synonyms: []string{"consumerdutyoutcome", "outcome", "cdoutcome"}, Example: "CONSUMER_SUPPORT"},
	{Field: FieldControlFrequency, Label: "Control Frequency", Required: true, Synonyms: []string{"controlfrequency", "frequency"}, Example: "MONTHLY"},
	{Field: FieldInternalOrThirdParty, Label: "Internal or Third Party", Synonyms: []string{"internalorthirdparty", "sourcing", "provider"}, Example: "INTERNAL"},
	{Field: FieldControlType, Label: "Control Type", Synonyms: []string{"controltype", "type"}, Example: "DETECTIVE"},
	{Field: FieldStandingComments, Label: "Standing Comments", Synonyms: []string{"standingcomments", "comments"}},
	{Field: FieldTestingFrequency, Label: "Testing Frequency", Synonyms: []string{"testingfrequency", "testfrequency"}, Example: "QUARTERLY"},
	{Field: FieldAssignedTesterEmail, Label: "Assigned Tester Email", Synonyms: []string{"assignedtesteremail", "testeremail", "tester"}, Example: "tester@example.com"},
	{Field: FieldSummaryOfTest, Label: "Summary of Test", Synonyms: []string{"summaryoftest", "testsummary"}, Example: "Sample 10 complaints"},
	{Field: FieldControlReference, Label: "Control Reference", Synonyms: []string{"controlreference", "reference", "controlref", "ref"}},
}

var RisksCatalogue = Catalogue{
	{Field: FieldRiskName, Label: "Risk Name", Required: true, Synonyms: []string{"riskname", "name", "risk", "title"}, Example: "Mis-selling"},
	{Field: FieldRiskDescription, Label: "Risk Description", Required: true, Synonyms: []string{"riskdescription", "description"}, Example: "Products sold outside target market"},
	{Field: FieldCategory, Label: "Category", Required: true, Synonyms: []string{"category", "riskcategory"}, Example: "CONDUCT"},
	{Field: FieldOwnerEmail, Label: "Owner Email", Required: true, Synonyms: []string{"owneremail", "riskowneremail", "riskowner", "owner"}, Example: "owner@example.com"},
	{Field: FieldInherentLikelihood, Label: "Inherent Likelihood", Required: true, Synonyms: []string{"inherentlikelihood"}, Example: "4"},
	{Field: FieldInherentImpact, Label: "Inherent Impact", Required: true, Synonyms: []string{"inherentimpact"}, Example: "4"},
	{Field: FieldResidualLikelihood, Label: "Residual Likelihood", Required: true, Synonyms: []string{"residuallikelihood"}, Example: "2"},
	{Field: FieldResidualImpact, Label: "Residual Impact", Required: true, Synonyms: []string{"residualimpact"}, Example: "3"},
	{Field: FieldSubCategory, Label: "Sub Category", Synonyms: []string{"subcategory"}},
	{Field: FieldDirectionOfTravel, Label: "Direction of Travel", Synonyms: []string{"directionoftravel", "direction", "trend"}, Example: "STABLE"},
	{Field: FieldRiskReference, Label: "Risk Reference", Synonyms: []string{"riskreference", "reference", "riskref", "ref"}},
}

var MeasuresCatalogue = Catalogue{
	{Field: FieldOutcomeID, Label: "Outcome ID", Required: true, Synonyms: []string{"outcomeid", "outcome", "outcomeref"}, Example: "PRICE_AND_VALUE"},
	{Field: FieldMeasureID, Label: "Measure ID", Required: true, Synonyms: []string{"measureid", "id", "measure"}, Example: "PV-01"},
	{Field: FieldName, Label: "Name", Required: true, Synonyms: []string{"name", "measurename", "title"}, Example: "Fair value assessment completed"},
	{Field: FieldOwner, Label: "Owner", Synonyms: []string{"owner", "measureowner"}},
	{Field: FieldSummary, Label: "Summary", Synonyms: []string{"summary", "description"}},
	{Field: FieldRAGStatus, Label: "RAG Status", Synonyms: []string{"ragstatus", "rag", "status"}, Example: "GOOD"},
}

var MetricsCatalogue = Catalogue{
	{Field: FieldMeasureID, Label: "Measure ID", Required: true, Synonyms: []string{"measureid", "measure", "id"}, Example: "PV-01"},
	{Field: FieldMetric, Label: "Metric", Required: true, Synonyms: []string{"metric", "metricname", "mi", "name"}, Example: "Complaints upheld"},
	{Field: FieldCurrentValue, Label: "Current Value", Synonyms: []string{"currentvalue", "current", "value", "actual"}, Example: "12.5%"},
	{Field: FieldTargetValue, Label: "Target Value", Synonyms: []string{"targetvalue", "target"}, Example: "10%"},
	{Field: FieldRAGStatus, Label: "RAG Status", Synonyms: []string{"ragstatus", "rag", "status"}, Example: "WARNING"},
	{Field: FieldOutcomeID, Label: "Outcome ID", Synonyms: []string{"outcomeid", "outcome", "outcomeref"}, Example: "PRICE_AND_VALUE"},
}

func CatalogueFor(kind Kind) (Catalogue, error) {
	switch kind {
	case KindControls:
		return ControlsCatalogue, nil
	case KindRisks:
		return RisksCatalogue, nil
	case KindMeasures:
		return MeasuresCatalogue, nil
	case KindMetrics:
		return MetricsCatalogue, nil
	}
	return nil, fmt.Errorf("unknown import kind %q", kind)
}
