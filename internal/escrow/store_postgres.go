package escrow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	id "amanah/pkg/domain"
)

// PostgresStore persists each escrow account as a single row. Conditions and
// release requests live in JSONB sub-documents, so every mutation reads,
// rewrites, and commits the whole aggregate. SELECT ... FOR UPDATE inside a
// transaction provides the per-account serialization the engine requires.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed escrow store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const pgUniqueViolation = "23505"

func (s *PostgresStore) Create(ctx context.Context, account *Account) error {
	conditions, requests, err := encodeSubdocs(account)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO escrow_accounts (
			account_number, property_id, buyer_id, seller_id, agent_id,
			total_amount, deposited_amount, released_amount,
			bank_name, bank_account_number, iban,
			conditions, release_requests, status, opened_at, closed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`,
		account.Number.String(), string(account.PropertyID), account.BuyerID.String(),
		account.SellerID.String(), account.AgentID.String(),
		account.TotalAmount, account.DepositedAmount, account.ReleasedAmount,
		account.BankName, account.BankAccountNumber, account.IBAN,
		conditions, requests, string(account.Status), account.OpenedAt, nullTime(account.ClosedAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateNumber
		}
		return fmt.Errorf("insert escrow account: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, number id.AccountID) (*Account, error) {
	row := s.db.QueryRowContext(ctx, selectAccount+` WHERE account_number = $1`, number.String())
	return scanAccount(row, number)
}

func (s *PostgresStore) Update(ctx context.Context, number id.AccountID, mutate func(*Account) error) (*Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin escrow update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, selectAccount+` WHERE account_number = $1 FOR UPDATE`, number.String())
	account, err := scanAccount(row, number)
	if err != nil {
		return nil, err
	}

	if err := mutate(account); err != nil {
		return nil, err
	}

	conditions, requests, err := encodeSubdocs(account)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE escrow_accounts SET
			deposited_amount = $2, released_amount = $3,
			conditions = $4, release_requests = $5,
			status = $6, closed_at = $7
		WHERE account_number = $1
	`,
		account.Number.String(),
		account.DepositedAmount, account.ReleasedAmount,
		conditions, requests, string(account.Status), nullTime(account.ClosedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("update escrow account: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit escrow update: %w", err)
	}
	return account, nil
}

const selectAccount = `
	SELECT account_number, property_id, buyer_id, seller_id, agent_id,
	       total_amount, deposited_amount, released_amount,
	       bank_name, bank_account_number, iban,
	       conditions, release_requests, status, opened_at, closed_at
	FROM escrow_accounts`

func scanAccount(row *sql.Row, number id.AccountID) (*Account, error) {
	var (
		account                       Account
		accountNumber, property       string
		buyer, seller, agent, status  string
		total, deposited, released    decimal.Decimal
		conditionsRaw, requestsRaw    []byte
		closedAt                      sql.NullTime
	)
	err := row.Scan(
		&accountNumber, &property, &buyer, &seller, &agent,
		&total, &deposited, &released,
		&account.BankName, &account.BankAccountNumber, &account.IBAN,
		&conditionsRaw, &requestsRaw, &status, &account.OpenedAt, &closedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(number)
		}
		return nil, fmt.Errorf("scan escrow account: %w", err)
	}
	account.Number = id.AccountID(accountNumber)
	account.PropertyID = id.PropertyID(property)
	account.BuyerID = id.PartyID(buyer)
	account.SellerID = id.PartyID(seller)
	account.AgentID = id.PartyID(agent)
	account.TotalAmount = total
	account.DepositedAmount = deposited
	account.ReleasedAmount = released
	account.Status = Status(status)
	if closedAt.Valid {
		account.ClosedAt = &closedAt.Time
	}
	if err := json.Unmarshal(conditionsRaw, &account.Conditions); err != nil {
		return nil, fmt.Errorf("decode escrow conditions: %w", err)
	}
	if err := json.Unmarshal(requestsRaw, &account.ReleaseRequests); err != nil {
		return nil, fmt.Errorf("decode escrow release requests: %w", err)
	}
	return &account, nil
}

func encodeSubdocs(account *Account) (conditions, requests []byte, err error) {
	conditions, err = json.Marshal(account.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("encode escrow conditions: %w", err)
	}
	requests, err = json.Marshal(account.ReleaseRequests)
	if err != nil {
		return nil, nil, fmt.Errorf("encode escrow release requests: %w", err)
	}
	return conditions, requests, nil
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}
