package admin

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/rabbit-console/rabbit-console/internal/db/repositories"
)

func newUserTestServer(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewUserHandlers(repositories.NewUserRepository(sqlx.NewDb(db, "postgres")))

	r := gin.New()
	r.GET("/users", h.ListUsersHandler())
	r.POST("/users", h.CreateUserHandler())
	return r, mock
}

func adminUserRow(id, username string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "username", "email", "is_admin", "created_at", "updated_at",
	}).AddRow(id, username, username+"@example.com", false, now, now)
}

func TestListUsers(t *testing.T) {
	r, mock := newUserTestServer(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM users ORDER BY username LIMIT \$1 OFFSET \$2`).
		WithArgs(50, 0).
		WillReturnRows(adminUserRow("user-1", "alice"))

	w := doJSON(r, http.MethodGet, "/users", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"username":"alice"`) {
		t.Errorf("expected user in response, got %s", w.Body.String())
	}
}

func TestListUsersRejectsBadPagination(t *testing.T) {
	r, mock := newUserTestServer(t)

	w := doJSON(r, http.MethodGet, "/users?pageSize=9999", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no database activity expected: %v", err)
	}
}

func TestCreateUser(t *testing.T) {
	r, mock := newUserTestServer(t)

	mock.ExpectQuery(`SELECT \* FROM users WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "alice", "alice@example.com", false,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doJSON(r, http.MethodPost, "/users", `{
		"username": "alice",
		"email": "alice@example.com"
	}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"username":"alice"`) {
		t.Errorf("expected created user in response, got %s", w.Body.String())
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	r, mock := newUserTestServer(t)

	mock.ExpectQuery(`SELECT \* FROM users WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(adminUserRow("user-1", "alice"))

	w := doJSON(r, http.MethodPost, "/users", `{
		"username": "alice",
		"email": "alice@example.com"
	}`)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no insert should have been issued: %v", err)
	}
}

func TestCreateUserInvalidBody(t *testing.T) {
	r, mock := newUserTestServer(t)

	w := doJSON(r, http.MethodPost, "/users", `{"username": "alice", "email": "not-an-email"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no database activity expected: %v", err)
	}
}
