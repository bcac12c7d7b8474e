package service

import (
	"context"
	"errors"
	"regexp"

	"github.com/google/uuid"
	"github.com/paystream/ledger-service/internal/model"
	"github.com/paystream/ledger-service/internal/repo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidDocument means the document does not match the pattern
	// required by the account kind (11 digits for CPF, 14 for CNPJ).
	ErrInvalidDocument = errors.New("invalid document format")
	// ErrUnknownKind means user_type is neither "common" nor "merchant".
	ErrUnknownKind = errors.New("user_type must be 'common' or 'merchant'")
)

var (
	cpfPattern  = regexp.MustCompile(`^\d{11}$`)
	cnpjPattern = regexp.MustCompile(`^\d{14}$`)
)

// RegisterInput carries the registration fields. Field presence is already
// enforced by request binding; this layer validates content.
type RegisterInput struct {
	FullName string
	Email    string
	Password string
	Document string
	UserType string
}

// AccountView is the registration response shape, password never included.
type AccountView struct {
	ID       uuid.UUID         `json:"id"`
	FullName string            `json:"full_name"`
	Email    string            `json:"email"`
	UserType model.AccountKind `json:"user_type"`
	CPF      string            `json:"cpf,omitempty"`
	CNPJ     string            `json:"cnpj,omitempty"`
}

// BalanceView is the balance lookup response shape. Balance is rendered as
// decimal text with two places, never a binary float.
type BalanceView struct {
	UserID   uuid.UUID         `json:"user_id"`
	Balance  string            `json:"balance"`
	UserType model.AccountKind `json:"user_type"`
}

// AccountService handles registration and balance lookup for both account
// variants.
type AccountService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

func NewAccountService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *AccountService {
	return &AccountService{repo: r, log: logger}
}

// Register creates an account of the requested kind. Duplicates are checked
// optimistically against both tables before the insert; the unique
// constraints re-verify at commit time, so a creation race still comes back
// as repo.ErrDuplicateAccount rather than a storage fault.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*AccountView, error) {
	kind := model.AccountKind(in.UserType)
	switch kind {
	case model.KindIndividual:
		if !cpfPattern.MatchString(in.Document) {
			return nil, ErrInvalidDocument
		}
	case model.KindMerchant:
		if !cnpjPattern.MatchString(in.Document) {
			return nil, ErrInvalidDocument
		}
	default:
		return nil, ErrUnknownKind
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	// Email must be unique across both variants, the document only within
	// its own table (the per-table unique index covers that).
	taken, err := s.repo.EmailTaken(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, repo.ErrDuplicateAccount
	}

	id := uuid.New()
	view := &AccountView{ID: id, FullName: in.FullName, Email: in.Email, UserType: kind}
	switch kind {
	case model.KindIndividual:
		acc := &model.Individual{
			ID:           id,
			FullName:     in.FullName,
			CPF:          in.Document,
			Email:        in.Email,
			PasswordHash: string(hash),
		}
		if err := s.repo.CreateIndividual(ctx, acc); err != nil {
			return nil, err
		}
		view.CPF = acc.CPF
	case model.KindMerchant:
		acc := &model.Merchant{
			ID:           id,
			FullName:     in.FullName,
			CNPJ:         in.Document,
			Email:        in.Email,
			PasswordHash: string(hash),
		}
		if err := s.repo.CreateMerchant(ctx, acc); err != nil {
			return nil, err
		}
		view.CNPJ = acc.CNPJ
	}
	s.log.Infof("account %s registered (%s)", id, kind)
	return view, nil
}

// Balance resolves an account of either variant and returns its balance.
// Redis serves as a read-through cache; any cache failure falls back to
// the database.
func (s *AccountService) Balance(ctx context.Context, id uuid.UUID) (*BalanceView, error) {
	if kind, bal, err := s.repo.CachedBalance(ctx, id); err == nil {
		return &BalanceView{UserID: id, Balance: bal.StringFixed(2), UserType: kind}, nil
	}
	acc, err := s.repo.FindAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CacheBalance(ctx, acc.ID, acc.Kind, acc.Balance); err != nil {
		s.log.Warnf("cache balance %s: %v", acc.ID, err)
	}
	return &BalanceView{UserID: acc.ID, Balance: acc.Balance.StringFixed(2), UserType: acc.Kind}, nil
}
