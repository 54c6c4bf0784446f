// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"
	"testing"

	"github.com/danielhkuo/assocvote/cliparse"
	"github.com/danielhkuo/assocvote/middleware"
	"github.com/danielhkuo/assocvote/models"
	"github.com/danielhkuo/assocvote/testutil"
)

type testEnv struct {
	db  *sql.DB
	cfg cliparse.Config
	svc Services
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig(t)
	return testEnv{db: conn, cfg: cfg, svc: NewServices(conn, cfg, nil, nil)}
}

// asOperator attaches the named test operator as Authenticate would
func asOperator(t *testing.T, cfg cliparse.Config, req *http.Request, name string) *http.Request {
	t.Helper()
	for _, op := range cfg.Operators {
		if op.Name == name {
			return req.WithContext(middleware.WithOperator(req.Context(), op))
		}
	}
	t.Fatalf("no test operator %q", name)
	return nil
}

func voterForm(groupID, nationalID, studentNumber string) models.RegisterVoterRequest {
	email := "voter@example.org"
	return models.RegisterVoterRequest{
		FirstName:      "Sara",
		LastName:       "Ahmadi",
		Gender:         "F",
		FathersName:    "Ali",
		EducationLevel: "BSc",
		FieldOfStudy:   "Physics",
		NationalID:     nationalID,
		StudentNumber:  studentNumber,
		Phone:          "09121234567",
		Email:          &email,
		GroupID:        groupID,
	}
}
