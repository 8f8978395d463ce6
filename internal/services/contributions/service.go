package contributions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"busboard/internal/domain"
	"busboard/internal/ports"
)

const receivedMessage = "Received and queued for processing."

// Service handles submission intake and read access for contributions.
// Every accepted submission enters the lifecycle as PENDING; the scheduled
// orchestrator decides its fate later.
type Service struct {
	repo   ports.ContributionRepository
	images ports.ImageStore
	now    func() time.Time
}

func New(repo ports.ContributionRepository, images ports.ImageStore) *Service {
	return &Service{repo: repo, images: images, now: time.Now}
}

// SubmitRoute stores a typed route submission as a PENDING contribution.
func (s *Service) SubmitRoute(ctx context.Context, c domain.RouteContribution) (domain.RouteContribution, error) {
	if strings.TrimSpace(c.SubmittedBy) == "" {
		return domain.RouteContribution{}, fmt.Errorf("submitter id is required: %w", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(c.FromName) == "" || strings.TrimSpace(c.ToName) == "" {
		return domain.RouteContribution{}, fmt.Errorf("origin and destination are required: %w", domain.ErrInvalidInput)
	}

	c.ID = uuid.NewString()
	c.Status = domain.StatusPending
	c.StatusMessage = receivedMessage
	c.SubmissionDate = s.now()
	c.ProcessedDate = nil
	return s.repo.SaveRoute(ctx, c)
}

// SubmitImage stores the uploaded bytes on disk and records a PENDING image
// contribution. The digest lets the duplicate detector catch repeat uploads
// of the same photograph without running OCR.
func (s *Service) SubmitImage(ctx context.Context, submittedBy, description string, image []byte) (domain.ImageContribution, error) {
	if strings.TrimSpace(submittedBy) == "" {
		return domain.ImageContribution{}, fmt.Errorf("submitter id is required: %w", domain.ErrInvalidInput)
	}
	if len(image) == 0 {
		return domain.ImageContribution{}, fmt.Errorf("image payload is empty: %w", domain.ErrInvalidInput)
	}

	sum := sha256.Sum256(image)
	id := uuid.NewString()
	path, err := s.images.Save(ctx, id, image)
	if err != nil {
		return domain.ImageContribution{}, fmt.Errorf("store image: %w", err)
	}

	c := domain.ImageContribution{
		ID:             id,
		SubmittedBy:    submittedBy,
		ImagePath:      path,
		Digest:         hex.EncodeToString(sum[:]),
		Description:    description,
		Status:         domain.StatusPending,
		StatusMessage:  receivedMessage,
		SubmissionDate: s.now(),
	}
	return s.repo.SaveImage(ctx, c)
}

func (s *Service) Route(ctx context.Context, id string) (domain.RouteContribution, error) {
	return s.repo.RouteByID(ctx, id)
}

func (s *Service) Image(ctx context.Context, id string) (domain.ImageContribution, error) {
	return s.repo.ImageByID(ctx, id)
}

// BySubmitter lists everything one user has submitted, both shapes.
func (s *Service) BySubmitter(ctx context.Context, submitterID string) ([]domain.RouteContribution, []domain.ImageContribution, error) {
	return s.repo.BySubmitter(ctx, submitterID)
}

// Stats reports contribution counts broken down by type and status.
func (s *Service) Stats(ctx context.Context) (map[domain.ContributionType]map[domain.Status]int, error) {
	return s.repo.CountByTypeAndStatus(ctx)
}
