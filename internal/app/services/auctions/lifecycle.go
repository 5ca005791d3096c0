package auctions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/estatehub/marketplace/internal/app/domain/auction"
	"github.com/estatehub/marketplace/internal/app/domain/property"
)

// SweepResult counts the transitions made by one sweep.
type SweepResult struct {
	Activated int `json:"activated"`
	Closed    int `json:"closed"`
	Defaulted int `json:"defaulted"`
}

// Activate opens upcoming auctions whose start time has passed.
func (s *Service) Activate(ctx context.Context, now time.Time) (int, error) {
	upcoming, err := s.store.ListAuctions(ctx, auction.Filter{Status: auction.StatusUpcoming})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, candidate := range upcoming {
		if now.Before(candidate.StartTime) {
			continue
		}
		ok, err := s.activate(ctx, candidate.ID, now)
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

func (s *Service) activate(ctx context.Context, id string, now time.Time) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	a, err := s.store.GetAuction(ctx, id)
	if err != nil {
		return false, err
	}
	if a.Status != auction.StatusUpcoming || now.Before(a.StartTime) {
		return false, nil
	}
	a.Status = auction.StatusActive
	saved, err := s.store.UpdateAuction(ctx, a)
	if err != nil {
		return false, err
	}
	s.log.WithField("auction_id", id).Info("auction started")
	s.publish(auction.EventStarted, saved, nil)
	return true, nil
}

// CloseDue ends every active auction whose end time has passed.
func (s *Service) CloseDue(ctx context.Context, now time.Time) (int, error) {
	active, err := s.store.ListAuctions(ctx, auction.Filter{Status: auction.StatusActive})
	if err != nil {
		return 0, err
	}
	count := 0
	var errs []error
	for _, candidate := range active {
		if now.Before(candidate.EndTime) {
			continue
		}
		if _, err := s.Close(ctx, candidate.ID, now); err != nil {
			// A bid may have extended the auction since it was listed.
			if errors.Is(err, auction.ErrInvalidState) {
				continue
			}
			errs = append(errs, fmt.Errorf("close auction %s: %w", candidate.ID, err))
			continue
		}
		count++
	}
	return count, errors.Join(errs...)
}

// ExpirePayments defaults winners who missed their payment deadline.
func (s *Service) ExpirePayments(ctx context.Context, now time.Time) (int, error) {
	ended, err := s.store.ListAuctions(ctx, auction.Filter{Status: auction.StatusEnded})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, candidate := range ended {
		if candidate.PaymentStatus != auction.PaymentPending || candidate.PaymentDeadline == nil || now.Before(*candidate.PaymentDeadline) {
			continue
		}
		ok, err := s.expirePayment(ctx, candidate.ID, now)
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

func (s *Service) expirePayment(ctx context.Context, id string, now time.Time) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	a, err := s.store.GetAuction(ctx, id)
	if err != nil {
		return false, err
	}
	if a.PaymentStatus != auction.PaymentPending || a.PaymentDeadline == nil || now.Before(*a.PaymentDeadline) {
		return false, nil
	}

	a.PaymentStatus = auction.PaymentDefaulted
	saved, err := s.store.UpdateAuction(ctx, a)
	if err != nil {
		return false, err
	}
	s.updateDeposit(ctx, saved.ID, saved.WinnerID, auction.DepositForfeited)
	if _, err := s.properties.SetStatus(ctx, saved.PropertyID, property.StatusAvailable); err != nil {
		s.log.WithError(err).WithField("property_id", saved.PropertyID).Warn("release property failed")
	}
	s.log.WithField("auction_id", id).WithField("winner_id", saved.WinnerID).Warn("auction payment defaulted")
	s.publish(auction.EventPaymentDefaulted, saved, nil)
	return true, nil
}

// Sweep runs every time-driven transition once.
func (s *Service) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var (
		result SweepResult
		errs   []error
		err    error
	)
	if result.Activated, err = s.Activate(ctx, now); err != nil {
		errs = append(errs, fmt.Errorf("activate: %w", err))
	}
	if result.Closed, err = s.CloseDue(ctx, now); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	if result.Defaulted, err = s.ExpirePayments(ctx, now); err != nil {
		errs = append(errs, fmt.Errorf("expire payments: %w", err))
	}
	return result, errors.Join(errs...)
}
