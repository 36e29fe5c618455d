package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/pkg/composables"
	"github.com/meridian-grc/meridian/pkg/constants"
)

// SeedFile is the YAML document loaded by the seed command.
type SeedFile struct {
	Users         []SeedUser    `yaml:"users" validate:"dive"`
	BusinessAreas []SeedArea    `yaml:"businessAreas" validate:"dive"`
	Outcomes      []SeedOutcome `yaml:"outcomes" validate:"dive"`
}

type SeedUser struct {
	Email string `yaml:"email" validate:"required,email"`
	Name  string `yaml:"name"`
}

type SeedArea struct {
	Name      string `yaml:"name" validate:"required"`
	SortOrder int    `yaml:"sortOrder"`
}

type SeedOutcome struct {
	Code      string        `yaml:"code" validate:"required"`
	Name      string        `yaml:"name" validate:"required"`
	RAGStatus string        `yaml:"ragStatus" validate:"omitempty,oneof=GOOD WARNING HARM"`
	Measures  []SeedMeasure `yaml:"measures" validate:"dive"`
}

type SeedMeasure struct {
	MeasureID string `yaml:"measureId" validate:"required"`
	Name      string `yaml:"name" validate:"required"`
	Owner     string `yaml:"owner"`
	Summary   string `yaml:"summary"`
	RAGStatus string `yaml:"ragStatus" validate:"omitempty,oneof=GOOD WARNING HARM"`
}

type SeedResult struct {
	Users         int `json:"users"`
	BusinessAreas int `json:"businessAreas"`
	Outcomes      int `json:"outcomes"`
	Measures      int `json:"measures"`
}

// ParseSeed decodes and validates a seed document.
func ParseSeed(r io.Reader) (*SeedFile, error) {
	var f SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, newServiceError(http.StatusBadRequest, CodeImportInvalidBody, "invalid seed file", err)
	}
	if err := constants.Validate.Struct(&f); err != nil {
		return nil, newServiceError(http.StatusBadRequest, CodeImportInvalidBody, "invalid seed file", err)
	}
	return &f, nil
}

type SeedService struct {
	users        domain.UserRepository
	areas        domain.BusinessAreaRepository
	consumerDuty domain.ConsumerDutyRepository
}

func NewSeedService(users domain.UserRepository, areas domain.BusinessAreaRepository, consumerDuty domain.ConsumerDutyRepository) *SeedService {
	return &SeedService{users: users, areas: areas, consumerDuty: consumerDuty}
}

// Apply writes the seed in one transaction. Existing rows are updated, so
// applying the same file twice is harmless.
func (s *SeedService) Apply(ctx context.Context, f *SeedFile) (SeedResult, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (SeedResult, error) {
		var res SeedResult
		for _, u := range f.Users {
			if _, err := s.users.Upsert(txCtx, domain.User{Email: u.Email, Name: strings.TrimSpace(u.Name)}); err != nil {
				return res, err
			}
			res.Users++
		}

		order, err := s.areas.MaxSortOrder(txCtx)
		if err != nil {
			return res, err
		}
		for _, a := range f.BusinessAreas {
			_, err := s.areas.GetByName(txCtx, a.Name)
			if err == nil {
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return res, err
			}
			sortOrder := a.SortOrder
			if sortOrder == 0 {
				order++
				sortOrder = order
			}
			if _, err := s.areas.Create(txCtx, domain.BusinessArea{Name: a.Name, SortOrder: sortOrder}); err != nil {
				return res, err
			}
			res.BusinessAreas++
		}

		for _, o := range f.Outcomes {
			outcome, err := s.consumerDuty.UpsertOutcome(txCtx, domain.ConsumerDutyOutcome{
				Code:      o.Code,
				Name:      o.Name,
				RAGStatus: o.RAGStatus,
			})
			if err != nil {
				return res, err
			}
			res.Outcomes++
			for _, m := range o.Measures {
				rag := m.RAGStatus
				if rag == "" {
					rag = domain.RAGGood
				}
				_, err := s.consumerDuty.UpsertMeasure(txCtx, domain.ConsumerDutyMeasure{
					OutcomeID: outcome.ID,
					MeasureID: m.MeasureID,
					Name:      m.Name,
					Owner:     m.Owner,
					Summary:   m.Summary,
					RAGStatus: rag,
				})
				if err != nil {
					return res, err
				}
				res.Measures++
			}
		}
		return res, nil
	})
}
