package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rog/backend/internal/auth"
	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/guard"
	"github.com/rog/backend/internal/infra"
	"github.com/rog/backend/internal/repository"
)

// DefaultHunterName is used when an account carries no name.
const DefaultHunterName = "Lovec"

// Login outcomes, as recorded in metrics.
const (
	outcomeSuccess    = "success"
	outcomeInvalidPIN = "invalid_pin"
	outcomeNotFound   = "not_found"
	outcomeDisabled   = "disabled"
	outcomeLocked     = "locked"
	outcomeError      = "error"
)

// AuthOptions holds the login settings taken from config.
type AuthOptions struct {
	LegacyPlainPINs  bool
	SuperAccountCode string
	BcryptCost       int
}

// AuthService issues and re-issues tokens.
type AuthService struct {
	db           repository.DBTX
	accounts     repository.AccountRepository
	associations repository.AssociationRepository
	lockout      *guard.Lockout
	jwtMgr       *auth.JWTManager
	metrics      *infra.Metrics
	opts         AuthOptions
	logger       *slog.Logger
}

// NewAuthService creates a new AuthService. lockout and metrics may be nil.
func NewAuthService(
	db repository.DBTX,
	accounts repository.AccountRepository,
	associations repository.AssociationRepository,
	lockout *guard.Lockout,
	jwtMgr *auth.JWTManager,
	metrics *infra.Metrics,
	opts AuthOptions,
	logger *slog.Logger,
) *AuthService {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		db:           db,
		accounts:     accounts,
		associations: associations,
		lockout:      lockout,
		jwtMgr:       jwtMgr,
		metrics:      metrics,
		opts:         opts,
		logger:       logger,
	}
}

// LoginInput holds the login request fields.
type LoginInput struct {
	Code string `json:"code"`
	PIN  string `json:"pin"`
}

// SessionUser is the user block returned with a token.
type SessionUser struct {
	Code          string      `json:"code"`
	Name          string      `json:"name"`
	AssociationID string      `json:"ldId"`
	Role          domain.Role `json:"role"`
	Enabled       bool        `json:"enabled"`
}

// AuthResult is returned on a successful login or association switch.
type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      SessionUser `json:"user"`
}

// Login exchanges an account code and PIN for a token.
func (s *AuthService) Login(ctx context.Context, input LoginInput, ip string) (*AuthResult, error) {
	code := strings.TrimSpace(input.Code)
	pin := strings.TrimSpace(input.PIN)
	if code == "" || pin == "" {
		return nil, domain.ErrValidation("missing code or pin")
	}

	if s.lockout != nil {
		if err := s.lockout.Check(ctx, code); err != nil {
			s.metrics.RecordLogin(outcomeLocked)
			return nil, err
		}
	}

	acct, err := s.accounts.FindByCode(ctx, s.db, code)
	if err != nil {
		s.metrics.RecordLogin(outcomeError)
		return nil, domain.ErrUpstream("find account", err)
	}
	if acct == nil {
		s.fail(ctx, code, ip, outcomeNotFound)
		return nil, domain.ErrNotFound("account", code)
	}
	if !acct.Enabled {
		s.metrics.RecordLogin(outcomeDisabled)
		return nil, domain.ErrAccountDisabled()
	}

	if err := s.verifyPIN(ctx, acct, pin); err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) && appErr.Status == 401 {
			s.fail(ctx, code, ip, outcomeInvalidPIN)
		} else {
			s.metrics.RecordLogin(outcomeError)
		}
		return nil, err
	}

	id, err := s.loginIdentity(acct)
	if err != nil {
		s.metrics.RecordLogin(outcomeError)
		return nil, err
	}

	token, expiresAt, err := s.jwtMgr.GenerateToken(id)
	if err != nil {
		s.metrics.RecordLogin(outcomeError)
		return nil, err
	}

	if s.lockout != nil {
		s.lockout.Record(ctx, code, ip, true)
	}
	s.metrics.RecordLogin(outcomeSuccess)

	return &AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User: SessionUser{
			Code:          id.Code,
			Name:          id.Name,
			AssociationID: id.AssociationID,
			Role:          id.Role,
			Enabled:       true,
		},
	}, nil
}

func (s *AuthService) fail(ctx context.Context, code, ip, outcome string) {
	if s.lockout != nil {
		s.lockout.Record(ctx, code, ip, false)
	}
	s.metrics.RecordLogin(outcome)
}

// verifyPIN checks the PIN against the stored credential. With legacy
// plaintext PINs enabled, a matching plaintext credential is replaced by its
// hash.
func (s *AuthService) verifyPIN(ctx context.Context, acct *domain.Account, pin string) error {
	if acct.Credential == "" {
		return domain.ErrMissingCredential(acct.Code)
	}

	if isBcryptHash(acct.Credential) {
		err := bcrypt.CompareHashAndPassword([]byte(acct.Credential), []byte(pin))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return domain.ErrInvalidCredential()
		}
		if err != nil {
			return domain.ErrUpstream("compare pin", err)
		}
		return nil
	}

	if !s.opts.LegacyPlainPINs {
		return domain.ErrMissingCredential(acct.Code)
	}
	if subtle.ConstantTimeCompare([]byte(acct.Credential), []byte(pin)) != 1 {
		return domain.ErrInvalidCredential()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.opts.BcryptCost)
	if err != nil {
		s.logger.Warn("hash legacy pin", "code", acct.Code, "error", err)
		return nil
	}
	if err := s.accounts.SetCredential(ctx, s.db, acct.Code, string(hash), nil); err != nil {
		s.logger.Warn("upgrade legacy pin", "code", acct.Code, "error", err)
	}
	return nil
}

func isBcryptHash(credential string) bool {
	_, err := bcrypt.Cost([]byte(credential))
	return err == nil
}

func (s *AuthService) loginIdentity(acct *domain.Account) (domain.Identity, error) {
	role, err := domain.ParseRole(string(acct.Role))
	if err != nil {
		return domain.Identity{}, domain.ErrMisconfigured("account has an invalid role").WithDetail(err.Error())
	}
	if s.opts.SuperAccountCode != "" && acct.Code == s.opts.SuperAccountCode {
		role = domain.RoleSuper
	}
	if acct.AssociationID == "" && role != domain.RoleSuper {
		return domain.Identity{}, domain.ErrMisconfigured("account has no association")
	}
	name := strings.TrimSpace(acct.Name)
	if name == "" {
		name = DefaultHunterName
	}
	return domain.Identity{
		Code:          acct.Code,
		Name:          name,
		AssociationID: acct.AssociationID,
		Role:          role,
	}, nil
}

// ListAssociations returns every association for the association picker,
// sorted by name. When none are stored, the association ids referenced by
// accounts are listed instead.
func (s *AuthService) ListAssociations(ctx context.Context, id domain.Identity) ([]domain.AssociationSummary, error) {
	if !id.IsPrivileged() {
		return nil, domain.ErrForbidden("only the super role may list associations")
	}

	stored, err := s.associations.List(ctx, s.db)
	if err != nil {
		return nil, domain.ErrUpstream("list associations", err)
	}

	out := make([]domain.AssociationSummary, 0, len(stored))
	for _, a := range stored {
		name := a.Name
		if name == "" {
			name = a.ID
		}
		out = append(out, domain.AssociationSummary{ID: a.ID, Name: name})
	}

	if len(out) == 0 {
		ids, err := s.accounts.DistinctAssociationIDs(ctx, s.db)
		if err != nil {
			return nil, domain.ErrUpstream("list account associations", err)
		}
		for _, ldID := range ids {
			out = append(out, domain.AssociationSummary{ID: ldID, Name: ldID})
		}
	}

	sortByName(out, func(a domain.AssociationSummary) string { return a.Name })
	return out, nil
}

// SwitchAssociation re-issues a super token scoped to another association.
func (s *AuthService) SwitchAssociation(ctx context.Context, id domain.Identity, associationID string) (*AuthResult, error) {
	if !id.Can(domain.CapSwitchAssociation) {
		return nil, domain.ErrForbidden("only the super role may switch association")
	}
	associationID = strings.TrimSpace(associationID)
	if associationID == "" {
		return nil, domain.ErrValidation("missing ldId")
	}
	if err := domain.ValidateAssociationID(associationID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	known, err := s.associationKnown(ctx, associationID)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, domain.ErrNotFound("association", associationID)
	}

	next := domain.Identity{
		Code:          id.Code,
		Name:          id.Name,
		AssociationID: associationID,
		Role:          domain.RoleSuper,
	}
	token, expiresAt, err := s.jwtMgr.GenerateToken(next)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User: SessionUser{
			Code:          next.Code,
			Name:          next.Name,
			AssociationID: next.AssociationID,
			Role:          next.Role,
			Enabled:       true,
		},
	}, nil
}

func (s *AuthService) associationKnown(ctx context.Context, associationID string) (bool, error) {
	exists, err := s.associations.Exists(ctx, s.db, associationID)
	if err != nil {
		return false, domain.ErrUpstream("find association", err)
	}
	if exists {
		return true, nil
	}
	ids, err := s.accounts.DistinctAssociationIDs(ctx, s.db)
	if err != nil {
		return false, domain.ErrUpstream("list account associations", err)
	}
	for _, ldID := range ids {
		if ldID == associationID {
			return true, nil
		}
	}
	return false, nil
}
