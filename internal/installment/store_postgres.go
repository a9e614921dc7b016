package installment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	id "amanah/pkg/domain"
)

// PostgresStore persists each plan as a single row with the installments
// collection in a JSONB sub-document. SELECT ... FOR UPDATE inside a
// transaction serializes mutations per plan.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed installment plan store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, plan *Plan) error {
	installments, err := json.Marshal(plan.Installments)
	if err != nil {
		return fmt.Errorf("encode installments: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO installment_plans (
			id, property_id, lead_id,
			total_amount, down_payment_amount, installment_amount,
			installment_count, frequency, start_date, end_date,
			installments, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		plan.ID.String(), string(plan.PropertyID), plan.LeadID.String(),
		plan.TotalAmount, plan.DownPaymentAmount, plan.InstallmentAmount,
		plan.InstallmentCount, string(plan.Frequency), plan.StartDate, plan.EndDate,
		installments, string(plan.Status), plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert installment plan: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, planID id.PlanID) (*Plan, error) {
	rows, err := s.db.QueryContext(ctx, selectPlan+` WHERE id = $1`, planID.String())
	if err != nil {
		return nil, fmt.Errorf("get installment plan: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get installment plan: %w", err)
		}
		return nil, planNotFound(planID)
	}
	return scanPlan(rows)
}

func (s *PostgresStore) Update(ctx context.Context, planID id.PlanID, mutate func(*Plan) error) (*Plan, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin plan update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, selectPlan+` WHERE id = $1 FOR UPDATE`, planID.String())
	if err != nil {
		return nil, fmt.Errorf("lock installment plan: %w", err)
	}
	if !rows.Next() {
		rowsErr := rows.Err()
		rows.Close()
		if rowsErr != nil {
			return nil, fmt.Errorf("lock installment plan: %w", rowsErr)
		}
		return nil, planNotFound(planID)
	}
	plan, err := scanPlan(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := mutate(plan); err != nil {
		return nil, err
	}

	installments, err := json.Marshal(plan.Installments)
	if err != nil {
		return nil, fmt.Errorf("encode installments: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE installment_plans SET installments = $2, status = $3
		WHERE id = $1
	`, plan.ID.String(), installments, string(plan.Status))
	if err != nil {
		return nil, fmt.Errorf("update installment plan: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit plan update: %w", err)
	}
	return plan, nil
}

func (s *PostgresStore) ListActiveByLead(ctx context.Context, leadID id.LeadID) ([]*Plan, error) {
	return s.list(ctx, selectPlan+` WHERE status = 'ACTIVE' AND lead_id = $1`, leadID.String())
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*Plan, error) {
	return s.list(ctx, selectPlan + ` WHERE status = 'ACTIVE'`)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*Plan, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list installment plans: %w", err)
	}
	defer rows.Close()

	var plans []*Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list installment plans: %w", err)
	}
	return plans, nil
}

const selectPlan = `
	SELECT id, property_id, lead_id,
	       total_amount, down_payment_amount, installment_amount,
	       installment_count, frequency, start_date, end_date,
	       installments, status, created_at
	FROM installment_plans`

func scanPlan(rows *sql.Rows) (*Plan, error) {
	var (
		plan                              Plan
		planID, property, lead, frequency string
		status                            string
		total, down, per                  decimal.Decimal
		installmentsRaw                   []byte
	)
	err := rows.Scan(
		&planID, &property, &lead,
		&total, &down, &per,
		&plan.InstallmentCount, &frequency, &plan.StartDate, &plan.EndDate,
		&installmentsRaw, &status, &plan.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("scan installment plan: %w", err)
	}
	plan.ID = id.PlanID(planID)
	plan.PropertyID = id.PropertyID(property)
	plan.LeadID = id.LeadID(lead)
	plan.TotalAmount = total
	plan.DownPaymentAmount = down
	plan.InstallmentAmount = per
	plan.Frequency = Frequency(frequency)
	plan.Status = PlanStatus(status)
	if err := json.Unmarshal(installmentsRaw, &plan.Installments); err != nil {
		return nil, fmt.Errorf("decode installments: %w", err)
	}
	return &plan, nil
}
