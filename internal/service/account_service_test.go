package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/paystream/ledger-service/internal/logger"
	"github.com/paystream/ledger-service/internal/model"
	"github.com/paystream/ledger-service/internal/repo"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newAccountEnv(t *testing.T) (*AccountService, *gorm.DB, context.Context) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.Individual{}, &model.Merchant{}, &model.Transfer{}, &model.OutboxEvent{}))

	rdb, _ := redismock.NewClientMock()
	log, _ := logger.NewLogger()
	repository := repo.NewRepository(db, rdb, &kafka.Writer{}, log)
	return NewAccountService(repository, log), db, context.Background()
}

func TestRegister_IndividualRoundTrip(t *testing.T) {
	svc, db, ctx := newAccountEnv(t)

	view, err := svc.Register(ctx, RegisterInput{
		FullName: "Alice Silva",
		Email:    "alice@example.com",
		Password: "s3cret",
		Document: "12345678901",
		UserType: "common",
	})
	assert.NoError(t, err)
	assert.Equal(t, model.KindIndividual, view.UserType)
	assert.Equal(t, "12345678901", view.CPF)
	assert.Empty(t, view.CNPJ)

	// The stored hash must verify and never equal the raw password.
	var stored model.Individual
	assert.NoError(t, db.Where("id = ?", view.ID).First(&stored).Error)
	assert.NotEqual(t, "s3cret", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cret")))

	// A fresh account starts at the default balance.
	bal, err := svc.Balance(ctx, view.ID)
	assert.NoError(t, err)
	assert.Equal(t, view.ID, bal.UserID)
	assert.Equal(t, "0.00", bal.Balance)
	assert.Equal(t, model.KindIndividual, bal.UserType)
}

func TestRegister_Merchant(t *testing.T) {
	svc, _, ctx := newAccountEnv(t)

	view, err := svc.Register(ctx, RegisterInput{
		FullName: "Acme Ltda",
		Email:    "acme@example.com",
		Password: "s3cret",
		Document: "12345678000199",
		UserType: "merchant",
	})
	assert.NoError(t, err)
	assert.Equal(t, model.KindMerchant, view.UserType)
	assert.Equal(t, "12345678000199", view.CNPJ)

	bal, err := svc.Balance(ctx, view.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.KindMerchant, bal.UserType)
	assert.Equal(t, "0.00", bal.Balance)
}

func TestRegister_DocumentValidation(t *testing.T) {
	svc, _, ctx := newAccountEnv(t)

	cases := []struct {
		document string
		userType string
	}{
		{"123", "common"},
		{"1234567890a", "common"},
		{"123456789012345", "common"},
		{"12345678901", "merchant"}, // CPF length on a merchant
		{"1234567800019x", "merchant"},
	}
	for _, tc := range cases {
		_, err := svc.Register(ctx, RegisterInput{
			FullName: "X", Email: "x@example.com", Password: "p",
			Document: tc.document, UserType: tc.userType,
		})
		assert.ErrorIs(t, err, ErrInvalidDocument, "%s/%s", tc.userType, tc.document)
	}

	_, err := svc.Register(ctx, RegisterInput{
		FullName: "X", Email: "x@example.com", Password: "p",
		Document: "12345678901", UserType: "admin",
	})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestRegister_DuplicateDocument(t *testing.T) {
	svc, _, ctx := newAccountEnv(t)

	_, err := svc.Register(ctx, RegisterInput{
		FullName: "Alice", Email: "alice@example.com", Password: "p",
		Document: "12345678901", UserType: "common",
	})
	assert.NoError(t, err)

	// Same CPF, different email: caught by the unique constraint.
	_, err = svc.Register(ctx, RegisterInput{
		FullName: "Mallory", Email: "mallory@example.com", Password: "p",
		Document: "12345678901", UserType: "common",
	})
	assert.ErrorIs(t, err, repo.ErrDuplicateAccount)
}

func TestRegister_EmailUniqueAcrossVariants(t *testing.T) {
	svc, _, ctx := newAccountEnv(t)

	_, err := svc.Register(ctx, RegisterInput{
		FullName: "Alice", Email: "shared@example.com", Password: "p",
		Document: "12345678901", UserType: "common",
	})
	assert.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{
		FullName: "Acme", Email: "shared@example.com", Password: "p",
		Document: "12345678000199", UserType: "merchant",
	})
	assert.ErrorIs(t, err, repo.ErrDuplicateAccount)
}

func TestBalance_UnknownAccount(t *testing.T) {
	svc, _, ctx := newAccountEnv(t)

	_, err := svc.Balance(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
