package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"busboard/internal/domain"
	"busboard/internal/ports"
	"busboard/internal/services/publish"
)

const duplicateMessage = "This bus route already exists in the network."

// Service applies manual approve and reject decisions. It follows the same
// transition rules as the scheduled orchestrator: only PENDING items can be
// acted on, and approval of a route performs the same canonical write. The
// status update and the canonical write commit in one atomic unit.
type Service struct {
	contribs ports.ContributionRepository
	tx       ports.TxRunner
	pub      *publish.Publisher
	notify   ports.Notifier
	logger   *slog.Logger
}

func New(contribs ports.ContributionRepository, tx ports.TxRunner, pub *publish.Publisher, notify ports.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{contribs: contribs, tx: tx, pub: pub, notify: notify, logger: logger}
}

// ApproveRoute publishes the contribution to the canonical store and marks
// it APPROVED. Re-approving an APPROVED item returns it unchanged; no
// second canonical record is written. A canonical collision degrades the
// item to DUPLICATE instead of failing the request.
func (s *Service) ApproveRoute(ctx context.Context, id, notes string) (domain.RouteContribution, error) {
	c, err := s.contribs.RouteByID(ctx, id)
	if err != nil {
		return domain.RouteContribution{}, err
	}
	if c.Status == domain.StatusApproved {
		return c, nil
	}
	if c.Status != domain.StatusPending {
		return domain.RouteContribution{}, invalidState(c.Status)
	}

	var updated domain.RouteContribution
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.pub.Publish(ctx, c); err != nil {
			return err
		}
		updated, err = s.contribs.TransitionRoute(ctx, id, domain.StatusPending, domain.StatusApproved, approvalMessage(notes))
		return err
	})
	if errors.Is(err, domain.ErrDuplicateRoute) {
		updated, err = s.contribs.TransitionRoute(ctx, id, domain.StatusPending, domain.StatusDuplicate, duplicateMessage)
		if err != nil {
			return domain.RouteContribution{}, err
		}
		return updated, nil
	}
	if err != nil {
		return domain.RouteContribution{}, err
	}

	if nerr := s.notify.RouteApproved(ctx, updated.ID, updated.BusNumber, updated.FromName, updated.ToName); nerr != nil {
		s.logger.Warn("approval notification failed", "id", updated.ID, "error", nerr)
	}
	return updated, nil
}

// RejectRoute marks a PENDING route contribution REJECTED with the given
// reason. Re-rejecting a REJECTED item returns it unchanged.
func (s *Service) RejectRoute(ctx context.Context, id, reason string) (domain.RouteContribution, error) {
	c, err := s.contribs.RouteByID(ctx, id)
	if err != nil {
		return domain.RouteContribution{}, err
	}
	if c.Status == domain.StatusRejected {
		return c, nil
	}
	if c.Status != domain.StatusPending {
		return domain.RouteContribution{}, invalidState(c.Status)
	}

	updated, err := s.contribs.TransitionRoute(ctx, id, domain.StatusPending, domain.StatusRejected, rejectionMessage(reason))
	if err != nil {
		return domain.RouteContribution{}, err
	}
	if nerr := s.notify.RouteRejected(ctx, updated.ID, updated.StatusMessage); nerr != nil {
		s.logger.Warn("rejection notification failed", "id", updated.ID, "error", nerr)
	}
	return updated, nil
}

// ApproveImage marks a PENDING image contribution APPROVED. The derived
// route contribution, if any, is moderated on its own.
func (s *Service) ApproveImage(ctx context.Context, id, notes string) (domain.ImageContribution, error) {
	c, err := s.contribs.ImageByID(ctx, id)
	if err != nil {
		return domain.ImageContribution{}, err
	}
	if c.Status == domain.StatusApproved {
		return c, nil
	}
	if c.Status != domain.StatusPending {
		return domain.ImageContribution{}, invalidState(c.Status)
	}

	updated, err := s.contribs.TransitionImage(ctx, id, domain.StatusPending, domain.StatusApproved, approvalMessage(notes))
	if err != nil {
		return domain.ImageContribution{}, err
	}
	if nerr := s.notify.ImageApproved(ctx, updated.ID); nerr != nil {
		s.logger.Warn("approval notification failed", "id", updated.ID, "error", nerr)
	}
	return updated, nil
}

// RejectImage marks a PENDING image contribution REJECTED.
func (s *Service) RejectImage(ctx context.Context, id, reason string) (domain.ImageContribution, error) {
	c, err := s.contribs.ImageByID(ctx, id)
	if err != nil {
		return domain.ImageContribution{}, err
	}
	if c.Status == domain.StatusRejected {
		return c, nil
	}
	if c.Status != domain.StatusPending {
		return domain.ImageContribution{}, invalidState(c.Status)
	}

	updated, err := s.contribs.TransitionImage(ctx, id, domain.StatusPending, domain.StatusRejected, rejectionMessage(reason))
	if err != nil {
		return domain.ImageContribution{}, err
	}
	if nerr := s.notify.ImageRejected(ctx, updated.ID, updated.StatusMessage); nerr != nil {
		s.logger.Warn("rejection notification failed", "id", updated.ID, "error", nerr)
	}
	return updated, nil
}

func invalidState(status domain.Status) error {
	return fmt.Errorf("contribution is %s: %w", status, domain.ErrInvalidState)
}

func approvalMessage(notes string) string {
	if notes == "" {
		return "Approved by moderator."
	}
	return "Approved by moderator: " + notes
}

func rejectionMessage(reason string) string {
	if reason == "" {
		return "Rejected by moderator."
	}
	return "Rejected by moderator: " + reason
}
