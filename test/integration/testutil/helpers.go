//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rog/backend/internal/domain"
)

// SeedAccount inserts an enabled account with a bcrypt-hashed PIN.
func (env *TestEnv) SeedAccount(code, name, ldID string, role domain.Role, pin string) {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	if err != nil {
		env.t.Fatalf("SeedAccount: hash: %v", err)
	}
	err = env.Repos.Accounts.Create(ctx, env.Pool, &domain.Account{
		Code: code, Name: name, AssociationID: ldID, Role: role,
		Credential: string(hash), Enabled: true,
	})
	if err != nil {
		env.t.Fatalf("SeedAccount: %v", err)
	}
}

// SeedAssociation upserts an enabled association.
func (env *TestEnv) SeedAssociation(id, name string) {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := env.Repos.Associations.UpsertBatch(ctx, env.Pool, []domain.Association{{ID: id, Name: name, Enabled: true}})
	if err != nil {
		env.t.Fatalf("SeedAssociation: %v", err)
	}
}

// Login authenticates an existing account and returns the token.
func (env *TestEnv) Login(code, pin string) string {
	env.t.Helper()
	resp := env.POST("/auth/login", map[string]string{"code": code, "pin": pin}, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		env.t.Fatalf("Login: expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		env.t.Fatalf("Login: decode: %v", err)
	}
	return result.Token
}

// Token issues a token for the identity without going through login.
func (env *TestEnv) Token(code, ldID string, role domain.Role) string {
	env.t.Helper()
	tok, _, err := env.JWTMgr.GenerateToken(domain.Identity{Code: code, Name: code, AssociationID: ldID, Role: role})
	if err != nil {
		env.t.Fatalf("Token: %v", err)
	}
	return tok
}

// Do performs a request with an optional JSON body and bearer token.
func (env *TestEnv) Do(method, path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("%s %s: encode: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("%s %s: new request: %v", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodGet, path, nil, "")
}

// POST performs a POST request with optional auth token.
func (env *TestEnv) POST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodPost, path, body, token)
}

// AuthGET performs an authenticated GET request.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodGet, path, nil, token)
}

// AuthPUT performs an authenticated PUT request.
func (env *TestEnv) AuthPUT(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodPut, path, body, token)
}

// AuthPATCH performs an authenticated PATCH request.
func (env *TestEnv) AuthPATCH(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodPatch, path, body, token)
}

// AuthDELETE performs an authenticated DELETE request.
func (env *TestEnv) AuthDELETE(path, token string) *http.Response {
	env.t.Helper()
	return env.Do(http.MethodDelete, path, nil, token)
}
