package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/fortunto2/super-turbo-sub006/internal/infra"
	"github.com/fortunto2/super-turbo-sub006/internal/sqlinline"
)

const (
	ProviderSuperDuper = "superduperai"
)

// Store reads and writes provider API tokens from the integration_tokens
// table, so deployments can rotate credentials without restarting.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// SuperDuperToken returns the stored SuperDuperAI API token, or empty when
// none is configured.
func (s *Store) SuperDuperToken(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderSuperDuper)
}

func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetSuperDuperToken stores or replaces the SuperDuperAI API token.
func (s *Store) SetSuperDuperToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("superduperai token is required")
	}
	return s.upsert(ctx, ProviderSuperDuper, token, nil)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
