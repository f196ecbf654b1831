package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/rog/backend/internal/domain"
	"github.com/rog/backend/internal/repository"
)

// MemberService manages the accounts of an association.
type MemberService struct {
	db         repository.DBTX
	accounts   repository.AccountRepository
	bcryptCost int
	now        func() time.Time
	logger     *slog.Logger
}

// NewMemberService creates a MemberService. A zero cost uses bcrypt's default.
func NewMemberService(db repository.DBTX, accounts repository.AccountRepository, bcryptCost int, logger *slog.Logger) *MemberService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &MemberService{db: db, accounts: accounts, bcryptCost: bcryptCost, now: time.Now, logger: logger}
}

// CreateMemberInput holds the new account fields.
type CreateMemberInput struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// UpdateMemberInput holds the optional fields of a member update.
type UpdateMemberInput struct {
	Enabled *bool   `json:"enabled"`
	Name    *string `json:"name"`
	Role    *string `json:"role"`
}

// CreatedMember is returned once, with the plaintext PIN.
type CreatedMember struct {
	User domain.Account `json:"user"`
	PIN  string         `json:"pin"`
}

// List returns the members of the caller's association.
func (s *MemberService) List(ctx context.Context, id domain.Identity) ([]domain.Account, error) {
	ldID, err := requireAssociation(id)
	if err != nil {
		return nil, err
	}
	accounts, err := s.accounts.ListByAssociation(ctx, s.db, ldID)
	if err != nil {
		return nil, domain.ErrUpstream("list accounts", err)
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	sortByName(accounts, func(a domain.Account) string { return a.Name })
	return accounts, nil
}

// Create adds an account to the caller's association and returns its PIN.
// An existing code is a conflict and the stored account is left untouched.
func (s *MemberService) Create(ctx context.Context, id domain.Identity, input CreateMemberInput) (*CreatedMember, error) {
	ldID, err := requireAssociation(id)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(input.Code)
	name := domain.CleanText(input.Name)
	if code == "" || name == "" {
		return nil, domain.ErrValidation("missing code or name")
	}
	if err := domain.ValidateCode(code); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if !id.CanAssign(role) {
		return nil, domain.ErrForbidden("cannot assign role " + string(role))
	}

	pin, hash, err := s.newPIN()
	if err != nil {
		return nil, err
	}

	acct := &domain.Account{
		Code:          code,
		Name:          name,
		AssociationID: ldID,
		Role:          role,
		Credential:    hash,
		Enabled:       true,
	}
	if err := s.accounts.Create(ctx, s.db, acct); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.ErrConflict("account " + code + " already exists")
		}
		return nil, domain.ErrUpstream("create account", err)
	}

	created, err := s.accounts.FindByCode(ctx, s.db, code)
	if err != nil || created == nil {
		created = acct
	}
	return &CreatedMember{User: *created, PIN: pin}, nil
}

// Update merges the patch into an account of the caller's association.
func (s *MemberService) Update(ctx context.Context, id domain.Identity, code string, input UpdateMemberInput) (*domain.Account, error) {
	target, err := s.manageable(ctx, id, code)
	if err != nil {
		return nil, err
	}

	var patch domain.AccountPatch
	patch.Enabled = input.Enabled
	if input.Name != nil {
		name := domain.CleanText(*input.Name)
		if name == "" {
			return nil, domain.ErrValidation("name must not be empty")
		}
		patch.Name = &name
	}
	if input.Role != nil {
		role, err := domain.ParseRole(*input.Role)
		if err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		if !id.CanAssign(role) {
			return nil, domain.ErrForbidden("cannot assign role " + string(role))
		}
		patch.Role = &role
	}
	if patch.Empty() {
		return target, nil
	}

	updated, err := s.accounts.Patch(ctx, s.db, target.Code, patch)
	if err != nil {
		return nil, domain.ErrUpstream("update account", err)
	}
	if updated == nil {
		return nil, domain.ErrNotFound("account", target.Code)
	}
	return updated, nil
}

// Delete removes an account. Callers cannot delete themselves.
func (s *MemberService) Delete(ctx context.Context, id domain.Identity, code string) error {
	if strings.TrimSpace(code) == id.Code {
		return domain.ErrForbidden("cannot delete your own account")
	}
	target, err := s.manageable(ctx, id, code)
	if err != nil {
		return err
	}
	deleted, err := s.accounts.Delete(ctx, s.db, target.Code)
	if err != nil {
		return domain.ErrUpstream("delete account", err)
	}
	if !deleted {
		return domain.ErrNotFound("account", target.Code)
	}
	return nil
}

// ResetPIN issues a new PIN for an account and returns it once.
func (s *MemberService) ResetPIN(ctx context.Context, id domain.Identity, code string) (string, error) {
	target, err := s.manageable(ctx, id, code)
	if err != nil {
		return "", err
	}
	pin, hash, err := s.newPIN()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	if err := s.accounts.SetCredential(ctx, s.db, target.Code, hash, &now); err != nil {
		return "", domain.ErrUpstream("reset pin", err)
	}
	s.logger.Info("pin reset", "code", target.Code, "by", id.Code)
	return pin, nil
}

// manageable loads an account the caller may act on: same association
// (unless super) and a role no higher than the caller's.
func (s *MemberService) manageable(ctx context.Context, id domain.Identity, code string) (*domain.Account, error) {
	if _, err := requireAssociation(id); err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrValidation("missing code")
	}
	target, err := s.accounts.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, domain.ErrUpstream("find account", err)
	}
	if target == nil || !id.CanAccess(target.AssociationID) {
		return nil, domain.ErrNotFound("account", code)
	}
	if !id.CanAssign(target.Role) {
		return nil, domain.ErrForbidden("cannot manage an account with a higher role")
	}
	return target, nil
}

func (s *MemberService) newPIN() (pin, hash string, err error) {
	pin, err = domain.GeneratePIN()
	if err != nil {
		return "", "", domain.ErrUpstream("generate pin", err)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pin), s.bcryptCost)
	if err != nil {
		return "", "", domain.ErrUpstream("hash pin", err)
	}
	return pin, string(h), nil
}
