/**
 * @description
 * Periodic sweeps invoked by the cron endpoints. Both sweeps are idempotent
 * and safe to run concurrently with user-driven returns: every write carries
 * a status precondition, and notifications are deduplicated through a
 * (transaction_id, notification_type) unique key in the store. A return that
 * completes a record makes it invisible to a sweep that started earlier but
 * writes later.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/sipsmart/cup-service/internal/domain"
)

const (
	overdueSweepBatchLimit = 500

	// Reminder window: loans due between 45 and 75 minutes from now.
	dueSoonWindowStart = 45 * time.Minute
	dueSoonWindowEnd   = 75 * time.Minute

	notificationTypeOverdue     = "overdue_warning"
	notificationTypeDueReminder = "due_reminder"
)

// CheckOverdue scans ongoing transactions past their due time and flips them
// to overdue. Overdue hours use ceil here: a loan one minute late is already
// in its first overdue hour for warning purposes.
func (s *Service) CheckOverdue(ctx context.Context) (*domain.SweepResult, error) {
	now := s.now().UTC()
	candidates, err := s.repo.ListOverdueCandidates(ctx, now, overdueSweepBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue candidates: %w", err)
	}

	result := &domain.SweepResult{Found: len(candidates)}
	for _, tx := range candidates {
		overdueHours := int(math.Ceil(now.Sub(tx.DueTime).Hours()))
		if overdueHours < 1 {
			overdueHours = 1
		}

		marked, err := s.repo.MarkTransactionOverdue(ctx, tx.ID, overdueHours)
		if err != nil {
			log.Printf("level=error component=service flow=overdue_sweep msg=\"failed to mark transaction overdue\" transaction_id=%s err=%v", tx.ID, err)
			continue
		}
		if !marked {
			// Completed by a racing return or already swept; nothing to do.
			continue
		}
		result.Processed++

		created, err := s.repo.CreateNotificationOnce(ctx, tx.ID, tx.UserID, notificationTypeOverdue,
			"Cup overdue",
			fmt.Sprintf("Your cup %s is %d hour(s) overdue. Return it to recover your deposit.", tx.CupID, overdueHours))
		if err != nil {
			log.Printf("level=warn component=service flow=overdue_sweep msg=\"failed to record overdue notification\" transaction_id=%s err=%v", tx.ID, err)
			continue
		}
		if created {
			s.notify(ctx, tx.UserID, "Cup overdue",
				fmt.Sprintf("Your cup %s is overdue. Return it soon to recover your deposit.", tx.CupID), "")
		}
	}

	log.Printf("level=info component=service flow=overdue_sweep found=%d processed=%d", result.Found, result.Processed)
	return result, nil
}

// SendDueReminders notifies users whose loans come due within the reminder
// window. The dedupe key guarantees one reminder per transaction no matter
// how often the sweep runs.
func (s *Service) SendDueReminders(ctx context.Context) (*domain.SweepResult, error) {
	now := s.now().UTC()
	candidates, err := s.repo.ListDueSoonTransactions(ctx, now.Add(dueSoonWindowStart), now.Add(dueSoonWindowEnd))
	if err != nil {
		return nil, fmt.Errorf("failed to list due-soon transactions: %w", err)
	}

	result := &domain.SweepResult{Found: len(candidates)}
	for _, tx := range candidates {
		created, err := s.repo.CreateNotificationOnce(ctx, tx.ID, tx.UserID, notificationTypeDueReminder,
			"Cup due soon",
			fmt.Sprintf("Your cup %s is due at %s. Return it on time for full green points.", tx.CupID, tx.DueTime.Format(time.Kitchen)))
		if err != nil {
			log.Printf("level=warn component=service flow=due_reminder msg=\"failed to record reminder\" transaction_id=%s err=%v", tx.ID, err)
			continue
		}
		if !created {
			continue
		}
		result.Processed++
		s.notify(ctx, tx.UserID, "Cup due soon",
			fmt.Sprintf("Your cup %s is due soon. Return it on time for full green points.", tx.CupID), "")
	}

	log.Printf("level=info component=service flow=due_reminder found=%d processed=%d", result.Found, result.Processed)
	return result, nil
}
