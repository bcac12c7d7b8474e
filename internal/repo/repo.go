package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/paystream/ledger-service/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInsufficientFunds is returned when the guarded debit finds the payer
// balance too low, including when a concurrent transfer got there first.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrDuplicateAccount signals a document or email collision on creation.
var ErrDuplicateAccount = errors.New("account with this document or email already exists")

// RepositoryInterface restricts Repository methods for unit-test mocks.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	CreateIndividual(ctx context.Context, acc *model.Individual) error
	CreateMerchant(ctx context.Context, acc *model.Merchant) error
	EmailTaken(ctx context.Context, email string) (bool, error)
	FindIndividual(ctx context.Context, id uuid.UUID) (*model.Individual, error)
	FindAccount(ctx context.Context, id uuid.UUID) (*model.Account, error)
	DebitIndividual(ctx context.Context, tx *gorm.DB, id uuid.UUID, amt decimal.Decimal) error
	CreditAccount(ctx context.Context, tx *gorm.DB, id uuid.UUID, kind model.AccountKind, amt decimal.Decimal) error
	AppendTransfer(ctx context.Context, tx *gorm.DB, t *model.Transfer) error
	FindTransfer(ctx context.Context, id uuid.UUID) (*model.Transfer, error)
	TransfersByPayer(ctx context.Context, payerID uuid.UUID, limit int) ([]model.Transfer, error)
	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error
	CacheBalance(ctx context.Context, id uuid.UUID, kind model.AccountKind, bal decimal.Decimal) error
	CachedBalance(ctx context.Context, id uuid.UUID) (model.AccountKind, decimal.Decimal, error)
}

// Repository implements RepositoryInterface over postgres, redis and kafka.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// DB returns the underlying *gorm.DB.
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// CreateIndividual inserts a new individual account. Unique-constraint
// violations (concurrent creation races slipping past the optimistic
// duplicate check) come back as ErrDuplicateAccount.
func (r *Repository) CreateIndividual(ctx context.Context, acc *model.Individual) error {
	if err := r.db.WithContext(ctx).Create(acc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateAccount
		}
		return err
	}
	return nil
}

// CreateMerchant inserts a new merchant account.
func (r *Repository) CreateMerchant(ctx context.Context, acc *model.Merchant) error {
	if err := r.db.WithContext(ctx).Create(acc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateAccount
		}
		return err
	}
	return nil
}

// EmailTaken reports whether any account of either variant uses the email.
func (r *Repository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Individual{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := r.db.WithContext(ctx).Model(&model.Merchant{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindIndividual looks up an individual account by id.
func (r *Repository) FindIndividual(ctx context.Context, id uuid.UUID) (*model.Individual, error) {
	var acc model.Individual
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

// FindAccount resolves an id against both variants, individuals first.
// Returns gorm.ErrRecordNotFound when the id matches neither table.
func (r *Repository) FindAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	var ind model.Individual
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ind).Error
	if err == nil {
		return &model.Account{ID: ind.ID, Kind: model.KindIndividual, Balance: ind.Balance}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	var m model.Merchant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &model.Account{ID: m.ID, Kind: model.KindMerchant, Balance: m.Balance}, nil
}

// DebitIndividual decrements the payer balance with a guard on the current
// value, so two concurrent transfers cannot both drive it below zero.
// Zero rows affected means the guard refused the debit.
func (r *Repository) DebitIndividual(ctx context.Context, tx *gorm.DB, id uuid.UUID, amt decimal.Decimal) error {
	res := tx.WithContext(ctx).
		Model(&model.Individual{}).
		Where("id = ? AND balance >= ?", id, amt).
		Update("balance", gorm.Expr("balance - ?", amt))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// CreditAccount increments the balance of either account variant.
func (r *Repository) CreditAccount(ctx context.Context, tx *gorm.DB, id uuid.UUID, kind model.AccountKind, amt decimal.Decimal) error {
	var target interface{}
	switch kind {
	case model.KindIndividual:
		target = &model.Individual{}
	case model.KindMerchant:
		target = &model.Merchant{}
	default:
		return fmt.Errorf("unknown account kind %q", kind)
	}
	res := tx.WithContext(ctx).
		Model(target).
		Where("id = ?", id).
		Update("balance", gorm.Expr("balance + ?", amt))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AppendTransfer inserts a ledger entry. The ledger is append-only; no
// update or delete is exposed anywhere in this package.
func (r *Repository) AppendTransfer(ctx context.Context, tx *gorm.DB, t *model.Transfer) error {
	return tx.WithContext(ctx).Create(t).Error
}

// FindTransfer fetches one ledger entry by id.
func (r *Repository) FindTransfer(ctx context.Context, id uuid.UUID) (*model.Transfer, error) {
	var t model.Transfer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// TransfersByPayer lists a payer's ledger entries in timestamp order, for
// audit and debugging.
func (r *Repository) TransfersByPayer(ctx context.Context, payerID uuid.UUID, limit int) ([]model.Transfer, error) {
	var ts []model.Transfer
	err := r.db.WithContext(ctx).
		Where("payer_id = ?", payerID).
		Order("created_at").
		Limit(limit).
		Find(&ts).Error
	return ts, err
}

// CreateOutboxEvent writes an audit event in the caller's transaction.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	return tx.WithContext(ctx).Create(evt).Error
}

// PollOutbox pulls unprocessed events.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).Where("processed = false").Order("created_at").Limit(limit).Find(&evts).Error
	return evts, err
}

// MarkOutboxProcessed sets the processed flag.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
}

// PublishEvent sends one outbox event to Kafka.
func (r *Repository) PublishEvent(ctx context.Context, evt model.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", evt.ID)),
		Value: []byte(evt.Payload),
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}

type cachedBalance struct {
	Kind    model.AccountKind `json:"user_type"`
	Balance string            `json:"balance"`
}

// CacheBalance stores the balance view in redis for read-through lookups.
func (r *Repository) CacheBalance(ctx context.Context, id uuid.UUID, kind model.AccountKind, bal decimal.Decimal) error {
	payload, err := json.Marshal(cachedBalance{Kind: kind, Balance: bal.StringFixed(2)})
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, "balance:"+id.String(), payload, 5*time.Minute).Err()
}

// CachedBalance reads the balance view back from redis.
func (r *Repository) CachedBalance(ctx context.Context, id uuid.UUID) (model.AccountKind, decimal.Decimal, error) {
	str, err := r.rdb.Get(ctx, "balance:"+id.String()).Result()
	if err != nil {
		return "", decimal.Zero, err
	}
	var c cachedBalance
	if err := json.Unmarshal([]byte(str), &c); err != nil {
		return "", decimal.Zero, err
	}
	bal, err := decimal.NewFromString(c.Balance)
	if err != nil {
		return "", decimal.Zero, err
	}
	return c.Kind, bal, nil
}
