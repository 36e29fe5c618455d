package importer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/pkg/delimited"
)

// maxAreaDistance bounds the edit distance at which a new business area is
// reported as a likely duplicate of an existing one.
const maxAreaDistance = 3

type TestingSetup struct {
	Frequency   string    `json:"testingFrequency"`
	TesterID    uuid.UUID `json:"assignedTesterId"`
	TesterEmail string    `json:"assignedTesterEmail"`
	Summary     string    `json:"summaryOfTest"`
}

type PeriodResult struct {
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	Result      string `json:"result"`
	Notes       string `json:"notes,omitempty"`
	IsBackdated bool   `json:"isBackdated"`
}

type ControlRow struct {
	ExistingID       *uuid.UUID             `json:"existingId,omitempty"`
	Reference        string                 `json:"reference,omitempty"`
	Name             string                 `json:"controlName"`
	Description      string                 `json:"controlDescription"`
	BusinessArea     domain.BusinessAreaRef `json:"businessArea"`
	BusinessAreaName string                 `json:"businessAreaName"`
	OwnerID          uuid.UUID              `json:"ownerId"`
	OwnerEmail       string                 `json:"controlOwnerEmail"`
	Outcome          string                 `json:"consumerDutyOutcome"`
	Frequency        string                 `json:"controlFrequency"`
	Sourcing         string                 `json:"internalOrThirdParty"`
	ControlType      string                 `json:"controlType,omitempty"`
	StandingComments string                 `json:"standingComments,omitempty"`
	Testing          *TestingSetup          `json:"testing,omitempty"`
	Results          []PeriodResult         `json:"results,omitempty"`
}

func (c ControlRow) Summary() Summary {
	return Summary{
		Action:       actionFor(c.ExistingID),
		Reference:    c.Reference,
		Name:         c.Name,
		BusinessArea: c.BusinessAreaName,
		NewArea:      c.BusinessArea.Pending,
		Outcome:      c.Outcome,
		TestResults:  len(c.Results),
	}
}

// ValidateControls validates a controls upload. now decides which period
// results are backdated.
func ValidateControls(t delimited.Table, m Mapping, ref *ReferenceData, now time.Time) Report[ControlRow] {
	periods := DetectPeriodColumns(t.Header)
	refs := seenKeys{}
	warned := map[string]bool{}
	var warnings []RowError

	report := validateRows(KindControls, t, m, ControlsCatalogue, func(r *rowReader) *ControlRow {
		row := &ControlRow{
			Name:        r.required(FieldControlName),
			Description: r.required(FieldControlDescription),
		}

		if reference := r.get(FieldControlReference); reference != "" {
			refs.check(r, r.label(FieldControlReference), fold(reference))
			if existing, ok := ref.Control(reference); ok {
				id := existing.ID
				row.ExistingID = &id
				row.Reference = existing.Reference
			} else {
				r.fail(r.label(FieldControlReference), "Control not found: "+reference)
			}
		}

		if area := r.required(FieldBusinessArea); area != "" {
			row.BusinessAreaName = area
			if existing, ok := ref.BusinessArea(area); ok {
				row.BusinessArea = domain.BusinessAreaRef{ID: existing.ID, Name: existing.Name}
				row.BusinessAreaName = existing.Name
			} else {
				row.BusinessArea = domain.BusinessAreaRef{Name: area, Pending: true}
				if key := fold(area); !warned[key] {
					warned[key] = true
					if match, ok := similarArea(area, ref.BusinessAreaNames()); ok {
						warnings = append(warnings, RowError{
							Row:     r.row,
							Field:   r.label(FieldBusinessArea),
							Message: fmt.Sprintf("Possible duplicate of existing business area %q", match),
						})
					}
				}
			}
		}

		if owner, ok := r.user(FieldControlOwnerEmail, true, ref); ok {
			row.OwnerID = owner.ID
			row.OwnerEmail = owner.Email
		}
		row.Outcome = r.enum(FieldConsumerDutyOutcome, domain.ConsumerDutyOutcomes, true, "")
		row.Frequency = r.enum(FieldControlFrequency, domain.ControlFrequencies, true, "")
		row.Sourcing = r.enum(FieldInternalOrThirdParty, domain.Sourcing, false, domain.SourcingInternal)
		row.ControlType = r.enum(FieldControlType, domain.ControlTypes, false, "")
		row.StandingComments = r.get(FieldStandingComments)

		row.Testing = readTesting(r, ref)
		row.Results = readPeriodResults(r, periods, row.Testing != nil || hasAnyTriad(r), now)

		if !r.ok() {
			return nil
		}
		return row
	})
	report.Periods = periods
	report.Warnings = append(report.Warnings, warnings...)
	return report
}

func hasAnyTriad(r *rowReader) bool {
	return r.get(FieldTestingFrequency) != "" || r.get(FieldAssignedTesterEmail) != "" || r.get(FieldSummaryOfTest) != ""
}

// readTesting returns the schedule setup when any of the three testing
// columns is filled; all three then become required.
func readTesting(r *rowReader, ref *ReferenceData) *TestingSetup {
	if !hasAnyTriad(r) {
		return nil
	}
	setup := &TestingSetup{
		Frequency: r.enum(FieldTestingFrequency, domain.TestingFrequencies, true, ""),
		Summary:   r.required(FieldSummaryOfTest),
	}
	tester, ok := r.user(FieldAssignedTesterEmail, true, ref)
	if ok {
		setup.TesterID = tester.ID
		setup.TesterEmail = tester.Email
	}
	if setup.Frequency == "" || setup.Summary == "" || !ok {
		return nil
	}
	return setup
}

func readPeriodResults(r *rowReader, periods []PeriodColumn, hasTesting bool, now time.Time) []PeriodResult {
	var out []PeriodResult
	triadReported := false
	for _, p := range periods {
		raw := r.header(p.ResultHeader)
		if raw == "" {
			continue
		}
		if !hasTesting && !triadReported {
			r.fail(p.ResultField(), MsgTriadRequired)
			triadReported = true
		}
		result, ok := domain.TestResults.Parse(raw)
		if !ok {
			r.fail(p.ResultField(), domain.TestResults.Message())
			continue
		}
		notes := ""
		if p.NotesHeader != "" {
			notes = r.header(p.NotesHeader)
		}
		if domain.RequiresNotes(result) && notes == "" {
			r.fail(p.NotesField(), MsgNotesRequired)
			continue
		}
		out = append(out, PeriodResult{
			Year:        p.Year,
			Month:       p.Month,
			Result:      result,
			Notes:       notes,
			IsBackdated: domain.IsBackdated(p.Year, p.Month, now),
		})
	}
	return out
}

// similarArea returns the existing area name closest to name, searching both
// ways so abbreviations and extensions of an existing name are caught.
func similarArea(name string, existing []string) (string, bool) {
	best, bestDistance := "", maxAreaDistance+1
	for _, rank := range fuzzy.RankFindNormalizedFold(name, existing) {
		if rank.Distance < bestDistance {
			best, bestDistance = rank.Target, rank.Distance
		}
	}
	for _, e := range existing {
		for _, rank := range fuzzy.RankFindNormalizedFold(e, []string{name}) {
			if rank.Distance < bestDistance {
				best, bestDistance = e, rank.Distance
			}
		}
	}
	return best, best != ""
}
