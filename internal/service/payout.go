package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartPayoutScheduler запускает фоновое начисление периодических выплат
// по активным инвестициям. Каждая инвестиция обрабатывается в собственной
// атомарной единице работы; ошибка одной не мешает остальным.
func (s *Service) StartPayoutScheduler(ctx context.Context) {
	if s.opts.PayoutInterval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(s.opts.PayoutInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processPayoutBatch(ctx)
			}
		}
	}()
}

func (s *Service) processPayoutBatch(ctx context.Context) {
	now := time.Now()

	ids, err := s.repo.DueInvestments(ctx, now, payoutBatchSize)
	if err != nil {
		s.logger.Error("list due investments", zap.Error(err))
		return
	}

	for _, id := range ids {
		applied, err := s.repo.ApplyInvestmentPayout(ctx, id, defaultCurrency, now)
		if err != nil {
			s.logger.Error("apply investment payout",
				zap.Int64("investmentID", id), zap.Error(err))
			continue
		}
		if applied {
			s.logger.Info("investment payout applied", zap.Int64("investmentID", id))
		}
	}
}
