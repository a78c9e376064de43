package service

import (
	"context"

	"rentcrm/internal/domain"
	"rentcrm/internal/models"

	"github.com/rs/zerolog"
)

type CompanyService struct {
	repo   domain.CompanyRepository
	logger *zerolog.Logger
}

func NewCompanyService(repo domain.CompanyRepository, logger *zerolog.Logger) *CompanyService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CompanyService{repo: repo, logger: logger}
}

// RegisterCompany adds name unless a company with the same folded name
// exists; the stored entry is returned either way.
func (s *CompanyService) RegisterCompany(ctx context.Context, name string) (*models.RentalCompany, bool, error) {
	company, created, err := s.repo.CreateCompanyIfAbsent(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info().Str("company", company.Name).Msg("Rental company registered")
	}
	return company, created, nil
}

func (s *CompanyService) ListCompanies(ctx context.Context) ([]*models.RentalCompany, error) {
	return s.repo.ListCompanies(ctx)
}

// Seed registers the configured companies, skipping existing ones.
func (s *CompanyService) Seed(ctx context.Context, companies []models.RentalCompany) (int, error) {
	added := 0
	for _, c := range companies {
		_, created, err := s.repo.CreateCompanyIfAbsent(ctx, c.Name)
		if err != nil {
			return added, err
		}
		if created {
			added++
		}
	}
	return added, nil
}
