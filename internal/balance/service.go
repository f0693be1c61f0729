package balance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fortunto2/super-turbo-sub006/internal/domain"
	"github.com/fortunto2/super-turbo-sub006/internal/infra"
	"github.com/fortunto2/super-turbo-sub006/internal/sqlinline"
)

// Service owns the per-user credit balance and its append-only transaction
// log. Deductions use a conditional update so two concurrent charges can
// never both succeed against the same credits.
type Service struct {
	sql    infra.SQLExecutor
	logger zerolog.Logger
}

func NewService(sql infra.SQLExecutor, logger zerolog.Logger) *Service {
	return &Service{sql: sql, logger: logger}
}

// GetBalance reads the user's current credit count.
func (s *Service) GetBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.sql.QueryRow(ctx, sqlinline.QSelectUserBalance, userID).Scan(&balance)
	if err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("select balance: %w", err)
	}
	return balance, nil
}

// DeductOperation charges the user for one generation operation. The update
// matches zero rows when the user cannot afford the cost, which is reported
// as a structured InsufficientBalanceError carrying the current balance.
func (s *Service) DeductOperation(ctx context.Context, userID string, op domain.OperationType, multipliers []string, metadata map[string]any) (int, error) {
	cost := OperationCost(op, multipliers)

	var before, after int
	err := s.sql.QueryRow(ctx, sqlinline.QDeductBalance, userID, cost).Scan(&before, &after)
	if err != nil {
		if !infra.IsNoRows(err) {
			return 0, fmt.Errorf("deduct balance: %w", err)
		}
		current, balErr := s.GetBalance(ctx, userID)
		if balErr != nil {
			return 0, balErr
		}
		return 0, &domain.InsufficientBalanceError{
			Type:             domain.BalanceErrorInsufficient,
			Message:          "not enough credits for this operation",
			Cost:             cost,
			AvailableCredits: current,
		}
	}

	s.record(ctx, userID, domain.TransactionDeduct, op, cost, before, after, metadata)
	s.logger.Info().
		Str("user_id", userID).
		Str("operation", string(op)).
		Int("cost", cost).
		Int("balance", after).
		Msg("balance: deducted")
	return cost, nil
}

// Deduct is the single-operation convenience used by the generation tracker.
func (s *Service) Deduct(ctx context.Context, userID string, op domain.OperationType, multipliers []string, reason string) (int, error) {
	return s.DeductOperation(ctx, userID, op, multipliers, map[string]any{"reason": reason})
}

// Refund returns credits after a failed generation.
func (s *Service) Refund(ctx context.Context, userID string, amount int, reason string) error {
	if amount <= 0 {
		return nil
	}
	_, err := s.adjust(ctx, userID, amount, domain.TransactionRefund, map[string]any{"reason": reason})
	return err
}

// Add credits the user. Negative amounts debit, clamped at zero balance.
func (s *Service) Add(ctx context.Context, userID string, amount int, reason string) (int, error) {
	return s.adjust(ctx, userID, amount, domain.TransactionGrant, map[string]any{"reason": reason})
}

// Set overwrites the balance, clamped at zero.
func (s *Service) Set(ctx context.Context, userID string, amount int, reason string) (int, error) {
	var before, after int
	err := s.sql.QueryRow(ctx, sqlinline.QSetBalance, userID, amount).Scan(&before, &after)
	if err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("set balance: %w", err)
	}
	s.record(ctx, userID, domain.TransactionSet, "", after-before, before, after, map[string]any{"reason": reason})
	return after, nil
}

// Transactions lists the newest bookkeeping entries for a user.
func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]domain.BalanceTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.sql.Query(ctx, sqlinline.QSelectBalanceTransactions, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.BalanceTransaction
	for rows.Next() {
		var tx domain.BalanceTransaction
		var rawMeta []byte
		err := rows.Scan(&tx.ID, &tx.UserID, &tx.Kind, &tx.Category, &tx.OperationType,
			&tx.Amount, &tx.BalanceBefore, &tx.BalanceAfter, &rawMeta, &tx.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if len(rawMeta) > 0 {
			_ = json.Unmarshal(rawMeta, &tx.Metadata)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Service) adjust(ctx context.Context, userID string, amount int, kind domain.TransactionKind, metadata map[string]any) (int, error) {
	var before, after int
	err := s.sql.QueryRow(ctx, sqlinline.QAddBalance, userID, amount).Scan(&before, &after)
	if err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("adjust balance: %w", err)
	}
	s.record(ctx, userID, kind, "", amount, before, after, metadata)
	return after, nil
}

// record appends the bookkeeping entry. The balance mutation has already
// committed when this runs, so an insert failure is logged, not returned.
func (s *Service) record(ctx context.Context, userID string, kind domain.TransactionKind, op domain.OperationType, amount, before, after int, metadata map[string]any) {
	var rawMeta []byte
	if len(metadata) > 0 {
		rawMeta, _ = json.Marshal(metadata)
	}
	category := ""
	if op != "" {
		category = string(CategoryOf(op))
	}
	_, err := s.sql.Exec(ctx, sqlinline.QInsertBalanceTransaction,
		userID, string(kind), category, string(op), amount, before, after, rawMeta)
	if err != nil {
		s.logger.Error().Err(err).
			Str("user_id", userID).
			Str("kind", string(kind)).
			Msg("balance: transaction insert failed")
	}
}
