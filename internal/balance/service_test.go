package balance

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/fortunto2/super-turbo-sub006/internal/domain"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type stubSQL struct {
	mu       sync.Mutex
	execs    []string
	queryRow func(query string, args ...any) pgx.Row
}

func (s *stubSQL) Exec(_ context.Context, query string, _ ...any) (pgconn.CommandTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs = append(s.execs, query)
	return pgconn.CommandTag{}, nil
}

func (s *stubSQL) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	if s.queryRow == nil {
		return simpleRow{}
	}
	return s.queryRow(query, args...)
}

func (s *stubSQL) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubSQL) ExecCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.execs)
}

func scanInts(values ...int) func(dest ...any) error {
	return func(dest ...any) error {
		for i, v := range values {
			if p, ok := dest[i].(*int); ok {
				*p = v
			}
		}
		return nil
	}
}

func TestDeductOperationChargesAndRecords(t *testing.T) {
	sql := &stubSQL{queryRow: func(query string, args ...any) pgx.Row {
		if !strings.Contains(query, "balance >=") {
			t.Fatalf("deduction must use the conditional update, got %q", query)
		}
		if args[1] != 5 {
			t.Fatalf("charged %v, want 5", args[1])
		}
		return simpleRow{scan: scanInts(20, 15)}
	}}
	svc := NewService(sql, zerolog.Nop())

	cost, err := svc.DeductOperation(context.Background(), "u1", domain.OperationTextToImage, nil, nil)
	if err != nil {
		t.Fatalf("DeductOperation: %v", err)
	}
	if cost != 5 {
		t.Fatalf("cost = %d, want 5", cost)
	}
	if sql.ExecCount() != 1 {
		t.Fatalf("execs = %d, want 1 transaction insert", sql.ExecCount())
	}
}

func TestDeductOperationInsufficient(t *testing.T) {
	sql := &stubSQL{queryRow: func(query string, _ ...any) pgx.Row {
		if strings.Contains(query, "balance >=") {
			return simpleRow{} // conditional update matched no rows
		}
		return simpleRow{scan: scanInts(3)}
	}}
	svc := NewService(sql, zerolog.Nop())

	_, err := svc.DeductOperation(context.Background(), "u1", domain.OperationTextToImage, nil, nil)
	be, ok := domain.AsInsufficientBalance(err)
	if !ok {
		t.Fatalf("err = %v, want InsufficientBalanceError", err)
	}
	if be.Cost != 5 || be.AvailableCredits != 3 {
		t.Fatalf("error = %+v, want cost 5, available 3", be)
	}
	if sql.ExecCount() != 0 {
		t.Fatal("no transaction row should be written for a rejected charge")
	}
}

func TestDeductOperationUnknownUser(t *testing.T) {
	sql := &stubSQL{queryRow: func(string, ...any) pgx.Row {
		return simpleRow{} // no such user anywhere
	}}
	svc := NewService(sql, zerolog.Nop())

	_, err := svc.DeductOperation(context.Background(), "ghost", domain.OperationTextToImage, nil, nil)
	if err != domain.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRefundZeroIsNoop(t *testing.T) {
	sql := &stubSQL{queryRow: func(string, ...any) pgx.Row {
		t.Fatal("refund of zero must not touch the database")
		return simpleRow{}
	}}
	svc := NewService(sql, zerolog.Nop())
	if err := svc.Refund(context.Background(), "u1", 0, "noop"); err != nil {
		t.Fatalf("Refund: %v", err)
	}
}

func TestSetReturnsNewBalance(t *testing.T) {
	sql := &stubSQL{queryRow: func(string, ...any) pgx.Row {
		return simpleRow{scan: scanInts(7, 100)}
	}}
	svc := NewService(sql, zerolog.Nop())

	after, err := svc.Set(context.Background(), "u1", 100, "admin grant")
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if after != 100 {
		t.Fatalf("after = %d, want 100", after)
	}
	if sql.ExecCount() != 1 {
		t.Fatalf("execs = %d, want 1", sql.ExecCount())
	}
}

// Two rapid deductions from balance 20 at cost 5 must land on 10. The stub
// mirrors the conditional-update semantics so both charges contend for the
// same row.
func TestConcurrentDeductionsDoNotRace(t *testing.T) {
	var mu sync.Mutex
	balance := 20

	sql := &stubSQL{queryRow: func(query string, args ...any) pgx.Row {
		if !strings.Contains(query, "balance >=") {
			return simpleRow{scan: scanInts(0)}
		}
		cost := args[1].(int)
		return simpleRow{scan: func(dest ...any) error {
			mu.Lock()
			defer mu.Unlock()
			if balance < cost {
				return pgx.ErrNoRows
			}
			before := balance
			balance -= cost
			return scanInts(before, balance)(dest...)
		}}
	}}
	svc := NewService(sql, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.DeductOperation(context.Background(), "u1", domain.OperationTextToImage, nil, nil); err != nil {
				t.Errorf("DeductOperation: %v", err)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if balance != 10 {
		t.Fatalf("final balance = %d, want 10", balance)
	}
}

func TestFormatErrorLocales(t *testing.T) {
	e := &domain.InsufficientBalanceError{Type: domain.BalanceErrorInsufficient, Cost: 10, AvailableCredits: 8}

	en := FormatError("en-US", e)
	if !strings.Contains(en, "need 10 credits") || !strings.Contains(en, "short by 2") {
		t.Fatalf("en message = %q", en)
	}

	id := FormatError("id-ID", e)
	if !strings.Contains(id, "butuh 10 kredit") {
		t.Fatalf("id message = %q", id)
	}

	// Unsupported locales fall back to English.
	if got := FormatError("fr", e); !strings.Contains(got, "Insufficient balance") {
		t.Fatalf("fallback message = %q", got)
	}
}
