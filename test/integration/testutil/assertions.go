//go:build integration

package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

// DecodeJSON reads and decodes a JSON response body into dst.
func DecodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
}

// AssertStatus checks that the response has the expected HTTP status code.
func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// AssertErrorCode checks that the response is a failure envelope with the expected code.
func AssertErrorCode(t *testing.T, resp *http.Response, expectedCode string) {
	t.Helper()
	var errResp struct {
		OK      bool   `json:"ok"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	DecodeJSON(t, resp, &errResp)
	if errResp.OK {
		t.Errorf("expected ok=false")
	}
	if errResp.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, errResp.Code, errResp.Message)
	}
}

// CountRows returns the number of rows in table matching the association.
func CountRows(t *testing.T, env *TestEnv, table, ldID string) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	err := env.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM "+table+" WHERE association_id = $1", ldID).Scan(&count)
	if err != nil {
		t.Fatalf("CountRows %s: %v", table, err)
	}
	return count
}

// Credential returns the stored credential for an account code.
func Credential(t *testing.T, env *TestEnv, code string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var cred string
	if err := env.Pool.QueryRow(ctx, "SELECT credential FROM accounts WHERE code = $1", code).Scan(&cred); err != nil {
		t.Fatalf("Credential: %v", err)
	}
	return cred
}

// AccountTimestamps returns created_at and updated_at for an account code.
func AccountTimestamps(t *testing.T, env *TestEnv, code string) (time.Time, time.Time) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var created, updated time.Time
	err := env.Pool.QueryRow(ctx,
		"SELECT created_at, updated_at FROM accounts WHERE code = $1", code).Scan(&created, &updated)
	if err != nil {
		t.Fatalf("AccountTimestamps: %v", err)
	}
	return created, updated
}
