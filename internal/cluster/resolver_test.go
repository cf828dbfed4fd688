package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/rabbit-console/rabbit-console/internal/crypto"
	"github.com/rabbit-console/rabbit-console/internal/db/repositories"
)

func newTestResolver(t *testing.T) (*Resolver, sqlmock.Sqlmock, *crypto.CredentialCipher) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	cipher, err := crypto.NewCredentialCipher(key)
	require.NoError(t, err)

	return NewResolver(repositories.NewClusterRepository(db), cipher), mock, cipher
}

func clusterRow(id, name, url, username, sealed string, active bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "api_url", "username", "password_encrypted",
		"description", "active", "created_at", "updated_at",
	}).AddRow(id, name, url, username, sealed, "", active, now, now)
}

func TestResolve(t *testing.T) {
	resolver, mock, cipher := newTestResolver(t)

	sealed, err := cipher.Seal("s3cret")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM clusters WHERE id = \$1`).
		WithArgs("c-1").
		WillReturnRows(clusterRow("c-1", "prod-east", "http://rmq:15672", "admin", sealed, true))

	ep, err := resolver.Resolve(context.Background(), "c-1")
	require.NoError(t, err)
	require.Equal(t, "prod-east", ep.ClusterName)
	require.Equal(t, "http://rmq:15672", ep.BaseURL)
	require.Equal(t, "admin", ep.Username)
	require.Equal(t, "s3cret", ep.Password)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestResolveNotFound(t *testing.T) {
	resolver, mock, _ := newTestResolver(t)

	mock.ExpectQuery(`SELECT .+ FROM clusters WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := resolver.Resolve(context.Background(), "missing")
	require.ErrorIs(t, err, ErrClusterNotFound)
}

func TestResolveInactive(t *testing.T) {
	resolver, mock, cipher := newTestResolver(t)

	sealed, err := cipher.Seal("s3cret")
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM clusters WHERE id = \$1`).
		WithArgs("c-2").
		WillReturnRows(clusterRow("c-2", "staging", "http://rmq:15672", "admin", sealed, false))

	_, err = resolver.Resolve(context.Background(), "c-2")
	require.ErrorIs(t, err, ErrClusterInactive)
}

func TestResolveCorruptCiphertext(t *testing.T) {
	resolver, mock, _ := newTestResolver(t)

	mock.ExpectQuery(`SELECT .+ FROM clusters WHERE id = \$1`).
		WithArgs("c-3").
		WillReturnRows(clusterRow("c-3", "prod", "http://rmq:15672", "admin", "not-a-ciphertext", true))

	_, err := resolver.Resolve(context.Background(), "c-3")
	require.Error(t, err)
}
