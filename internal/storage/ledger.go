package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"paidqa/internal/errorz"
	"paidqa/internal/money"
)

// Debit removes amount from the user's balance, failing with
// errorz.ErrInsufficientFunds when the balance would go negative.
func (t *Tx) Debit(ctx context.Context, userID int64, amount money.Amount, entry Entry) (money.Amount, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: debit amount must be positive", errorz.ErrValidation)
	}
	result, err := t.tx.ExecContext(ctx, `
		UPDATE users
		SET balance = balance - ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND balance >= ?
	`, amount.Minor(), userID, amount.Minor())
	if err != nil {
		return 0, fmt.Errorf("failed to debit user %d: %w", userID, err)
	}
	if err := t.expectOneRow(ctx, result, userID, errorz.ErrInsufficientFunds); err != nil {
		return 0, err
	}
	return t.record(ctx, userID, -amount, entry)
}

// Credit adds amount to the user's balance.
func (t *Tx) Credit(ctx context.Context, userID int64, amount money.Amount, entry Entry) (money.Amount, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: credit amount must be positive", errorz.ErrValidation)
	}
	result, err := t.tx.ExecContext(ctx, `
		UPDATE users
		SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, amount.Minor(), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to credit user %d: %w", userID, err)
	}
	if err := t.expectOneRow(ctx, result, userID, nil); err != nil {
		return 0, err
	}
	return t.record(ctx, userID, amount, entry)
}

// Clawback removes amount from the user's balance without a funds check.
// The balance may become negative; only dispute resolution uses it.
func (t *Tx) Clawback(ctx context.Context, userID int64, amount money.Amount, entry Entry) (money.Amount, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: clawback amount must be positive", errorz.ErrValidation)
	}
	result, err := t.tx.ExecContext(ctx, `
		UPDATE users
		SET balance = balance - ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, amount.Minor(), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to claw back from user %d: %w", userID, err)
	}
	if err := t.expectOneRow(ctx, result, userID, nil); err != nil {
		return 0, err
	}
	return t.record(ctx, userID, -amount, entry)
}

// expectOneRow turns a zero-row update into NotFound or the given failure.
func (t *Tx) expectOneRow(ctx context.Context, result sql.Result, userID int64, failure error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}
	var exists int
	err = t.tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: user %d", errorz.ErrNotFound, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to check user %d: %w", userID, err)
	}
	if failure == nil {
		return fmt.Errorf("unexpected update count %d for user %d", affected, userID)
	}
	return fmt.Errorf("%w: user %d", failure, userID)
}

func (t *Tx) record(ctx context.Context, userID int64, signed money.Amount, entry Entry) (money.Amount, error) {
	var questionID any
	if entry.QuestionID != 0 {
		questionID = entry.QuestionID
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, amount, source_type, question_id, description)
		VALUES (?, ?, ?, ?, ?)
	`, userID, signed.Minor(), string(entry.Source), questionID, entry.Description)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s transaction: %w", entry.Source, err)
	}
	return balance(ctx, t.tx, userID)
}

// Balance returns the user's current balance.
func (s *Store) Balance(ctx context.Context, userID int64) (money.Amount, error) {
	return balance(ctx, s.db, userID)
}

func balance(ctx context.Context, q querier, userID int64) (money.Amount, error) {
	var b money.Amount
	err := q.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, userID).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: user %d", errorz.ErrNotFound, userID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return b, nil
}

// ListTransactions returns the user's most recent ledger entries, newest first.
func (s *Store) ListTransactions(ctx context.Context, userID int64, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, source_type, COALESCE(question_id, 0), COALESCE(description, ''), created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*Transaction
	for rows.Next() {
		var t Transaction
		var source string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &source, &t.QuestionID, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.SourceType = SourceType(source)
		txs = append(txs, &t)
	}
	return txs, rows.Err()
}

// TotalBalance sums every user balance; the escrow keeps it equal to the
// welcome bonuses issued minus the amount currently held.
func (s *Store) TotalBalance(ctx context.Context) (money.Amount, error) {
	var total money.Amount
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(balance), 0) FROM users`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum balances: %w", err)
	}
	return total, nil
}
