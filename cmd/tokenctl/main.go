package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fortunto2/super-turbo-sub006/internal/infra"
	"github.com/fortunto2/super-turbo-sub006/internal/infra/credentials"
)

func main() {
	var (
		tokenFlag string
		showFlag  bool
	)
	flag.StringVar(&tokenFlag, "token", "", "SuperDuperAI API token (falls back to SUPERDUPERAI_TOKEN)")
	flag.BoolVar(&showFlag, "show", false, "print the currently stored token instead of writing one")
	flag.Parse()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "tokenctl").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	execCtx, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()

	if showFlag {
		token, err := store.SuperDuperToken(execCtx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read token: %v\n", err)
			os.Exit(1)
		}
		if token == "" {
			fmt.Println("no token stored")
			return
		}
		fmt.Println(token)
		return
	}

	token := strings.TrimSpace(tokenFlag)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("SUPERDUPERAI_TOKEN"))
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "a token is required via -token or SUPERDUPERAI_TOKEN")
		os.Exit(1)
	}

	if err := store.SetSuperDuperToken(execCtx, token); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("SuperDuperAI API token stored successfully")
}
