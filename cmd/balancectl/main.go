package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fortunto2/super-turbo-sub006/internal/balance"
	"github.com/fortunto2/super-turbo-sub006/internal/domain"
	"github.com/fortunto2/super-turbo-sub006/internal/infra"
	"github.com/fortunto2/super-turbo-sub006/internal/sqlinline"
)

func main() {
	var (
		idFlag     string
		emailFlag  string
		addFlag    int
		setFlag    int
		reasonFlag string
	)

	flag.StringVar(&idFlag, "id", "", "user ID to update (UUID)")
	flag.StringVar(&emailFlag, "email", "", "user email to update")
	flag.IntVar(&addFlag, "add", 0, "credits to add (negative to debit, clamped at zero balance)")
	flag.IntVar(&setFlag, "set", -1, "absolute balance to set (takes precedence over -add)")
	flag.StringVar(&reasonFlag, "reason", "manual adjustment", "reason recorded in the transaction log")
	flag.Parse()

	userID := strings.TrimSpace(idFlag)
	email := strings.TrimSpace(emailFlag)
	if userID == "" && email == "" {
		exitWithError(errors.New("either -id or -email must be provided"))
	}
	if setFlag < 0 && addFlag == 0 {
		exitWithError(errors.New("one of -add or -set must be provided"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "balancectl").Logger()
	runner := infra.NewSQLRunner(pool, logger)
	balances := balance.NewService(runner, logger)

	if userID == "" {
		lookupCtx, cancelLookup := context.WithTimeout(context.Background(), 5*time.Second)
		row := runner.QueryRow(lookupCtx, sqlinline.QSelectUserByEmail, email)
		var u domain.User
		err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Locale, &u.Role, &u.Balance, &u.CreatedAt, &u.UpdatedAt)
		cancelLookup()
		if err != nil {
			exitWithError(fmt.Errorf("failed to load user by email: %w", err))
		}
		userID = u.ID
	}

	updateCtx, cancelUpdate := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelUpdate()

	var after int
	if setFlag >= 0 {
		after, err = balances.Set(updateCtx, userID, setFlag, reasonFlag)
	} else {
		after, err = balances.Add(updateCtx, userID, addFlag, reasonFlag)
	}
	if err != nil {
		exitWithError(fmt.Errorf("failed to update balance: %w", err))
	}

	fmt.Printf("User %s balance is now %d\n", userID, after)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
