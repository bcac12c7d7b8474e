package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/paystream/ledger-service/internal/model"
	"github.com/paystream/ledger-service/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidInput        = errors.New("invalid payer, payee or amount format")
	ErrInvalidAmount       = errors.New("transfer amount must be positive")
	ErrPayerNotFound       = errors.New("payer not found or is not a common user")
	ErrPayeeNotFound       = errors.New("payee not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotAuthorized       = errors.New("transfer not authorized by external service")
	ErrTransferFailed      = errors.New("transfer failed during processing")
)

// AuthorizerGateway is the external yes/no decision call. Implementations
// must be fail-closed: any error means false.
type AuthorizerGateway interface {
	Authorize(ctx context.Context) bool
}

// NotifierGateway is the external best-effort delivery call.
type NotifierGateway interface {
	Notify(ctx context.Context, payeeID uuid.UUID, amount decimal.Decimal) bool
}

// Receipt is the success payload of a processed transfer.
type Receipt struct {
	TransferID uuid.UUID
	Status     model.TransferStatus
}

// TransferService runs the transfer state machine: parse, amount gate,
// payer and payee resolution, balance check, external authorization,
// atomic balance mutation plus ledger write, then best-effort notification.
type TransferService struct {
	repo     repo.RepositoryInterface
	auth     AuthorizerGateway
	notifier NotifierGateway
	log      *zap.SugaredLogger
}

func NewTransferService(r repo.RepositoryInterface, auth AuthorizerGateway, n NotifierGateway, logger *zap.SugaredLogger) *TransferService {
	return &TransferService{repo: r, auth: auth, notifier: n, log: logger}
}

// parseAmount accepts only decimal text representable exactly at two
// places. Anything else, including scientific notation overflowing the
// scale, is a parse failure.
func parseAmount(raw string) (decimal.Decimal, error) {
	amt, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if !amt.Equal(amt.Truncate(2)) {
		return decimal.Zero, ErrInvalidInput
	}
	return amt, nil
}

// Process executes one transfer attempt end to end. Each gate
// short-circuits to a terminal error; the first point at which a ledger
// record exists is the authorization step.
func (s *TransferService) Process(ctx context.Context, payerRaw, payeeRaw, amountRaw string) (*Receipt, error) {
	payerID, err := uuid.Parse(payerRaw)
	if err != nil {
		return nil, ErrInvalidInput
	}
	payeeID, err := uuid.Parse(payeeRaw)
	if err != nil {
		return nil, ErrInvalidInput
	}
	amt, err := parseAmount(amountRaw)
	if err != nil {
		return nil, ErrInvalidInput
	}
	if amt.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	// Only individuals can pay; a merchant id here is not-found, not a
	// type error.
	payer, err := s.repo.FindIndividual(ctx, payerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPayerNotFound
		}
		return nil, err
	}

	payee, err := s.repo.FindAccount(ctx, payeeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPayeeNotFound
		}
		return nil, err
	}

	// The balance pre-check precedes authorization: an obviously broke
	// payer never reaches the external service and leaves no record.
	if payer.Balance.LessThan(amt) {
		return nil, ErrInsufficientBalance
	}

	if !s.auth.Authorize(ctx) {
		s.recordFailure(ctx, payer.ID, payee.ID, amt)
		return nil, ErrNotAuthorized
	}

	transfer := &model.Transfer{
		ID:      uuid.New(),
		PayerID: payer.ID,
		PayeeID: payee.ID,
		Amount:  amt,
		Status:  model.StatusCompleted,
	}
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		// Touch rows in id order so two opposite transfers between the
		// same pair cannot deadlock.
		if payee.ID.String() < payer.ID.String() {
			if err := s.repo.CreditAccount(ctx, tx, payee.ID, payee.Kind, amt); err != nil {
				return err
			}
			if err := s.repo.DebitIndividual(ctx, tx, payer.ID, amt); err != nil {
				return err
			}
		} else {
			if err := s.repo.DebitIndividual(ctx, tx, payer.ID, amt); err != nil {
				return err
			}
			if err := s.repo.CreditAccount(ctx, tx, payee.ID, payee.Kind, amt); err != nil {
				return err
			}
		}
		if err := s.repo.AppendTransfer(ctx, tx, transfer); err != nil {
			return err
		}
		return s.repo.CreateOutboxEvent(ctx, tx, s.auditEvent(transfer))
	})
	if err != nil {
		// The unit rolled back; leave a Failed entry behind it.
		s.recordFailure(ctx, payer.ID, payee.ID, amt)
		if errors.Is(err, repo.ErrInsufficientFunds) {
			// A concurrent transfer drained the payer between the
			// pre-check and the guarded debit.
			return nil, ErrInsufficientBalance
		}
		s.log.Errorf("transfer %s commit failed: %v", transfer.ID, err)
		return nil, ErrTransferFailed
	}

	s.refreshCaches(ctx, payer, payee, amt)

	if !s.notifier.Notify(ctx, payee.ID, amt) {
		s.log.Warnf("notification failed for transfer %s to payee %s", transfer.ID, payee.ID)
	}

	return &Receipt{TransferID: transfer.ID, Status: transfer.Status}, nil
}

// recordFailure appends a Failed ledger entry in its own transaction. This
// write is best-effort: if it fails too, that is an operational concern
// logged here, not an error for the caller.
func (s *TransferService) recordFailure(ctx context.Context, payerID, payeeID uuid.UUID, amt decimal.Decimal) {
	transfer := &model.Transfer{
		ID:      uuid.New(),
		PayerID: payerID,
		PayeeID: payeeID,
		Amount:  amt,
		Status:  model.StatusFailed,
	}
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.AppendTransfer(ctx, tx, transfer); err != nil {
			return err
		}
		return s.repo.CreateOutboxEvent(ctx, tx, s.auditEvent(transfer))
	})
	if err != nil {
		s.log.Errorf("could not record failed transfer %s -> %s: %v", payerID, payeeID, err)
	}
}

func (s *TransferService) auditEvent(t *model.Transfer) *model.OutboxEvent {
	payload, _ := json.Marshal(map[string]interface{}{
		"transfer_id": t.ID.String(),
		"payer_id":    t.PayerID.String(),
		"payee_id":    t.PayeeID.String(),
		"amount":      t.Amount.StringFixed(2),
		"status":      t.Status,
	})
	return &model.OutboxEvent{
		Aggregate:   "Transfer",
		AggregateID: t.ID.String(),
		EventType:   "transfer." + string(t.Status),
		Payload:     string(payload),
	}
}

// refreshCaches re-warms the redis balance entries after a commit. The
// values derive from the pre-read balances; the cache is a short-lived
// convenience, the database stays authoritative.
func (s *TransferService) refreshCaches(ctx context.Context, payer *model.Individual, payee *model.Account, amt decimal.Decimal) {
	payerBal := payer.Balance.Sub(amt)
	payeeBal := payee.Balance.Add(amt)
	if payee.ID == payer.ID {
		// Self transfer nets to zero.
		payerBal, payeeBal = payer.Balance, payer.Balance
	}
	if err := s.repo.CacheBalance(ctx, payer.ID, model.KindIndividual, payerBal); err != nil {
		s.log.Warnf("cache payer balance: %v", err)
	}
	if err := s.repo.CacheBalance(ctx, payee.ID, payee.Kind, payeeBal); err != nil {
		s.log.Warnf("cache payee balance: %v", err)
	}
}
