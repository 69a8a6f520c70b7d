package appealstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgconn"

	"lfpappeals/web/internal/appeal"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("appeal already exists for penalty")
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateAppeal inserts the appeal and returns its generated id. A second
// appeal for the same penalty fails with ErrDuplicate.
func (s *PostgresStore) CreateAppeal(ctx context.Context, a appeal.Appeal) (string, error) {
	a.ID = ""
	payload, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode appeal: %w", err)
	}
	var createdByID, createdByEmail sql.NullString
	if a.CreatedBy != nil {
		createdByID = sql.NullString{String: a.CreatedBy.ID, Valid: a.CreatedBy.ID != ""}
		createdByEmail = sql.NullString{String: a.CreatedBy.EmailAddress, Valid: a.CreatedBy.EmailAddress != ""}
	}

	var id string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO appeals (company_number, penalty_reference, reason_type, payload, created_by_id, created_by_email)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text
	`, a.PenaltyIdentifier.CompanyNumber, a.PenaltyIdentifier.PenaltyReference, a.CurrentReasonType,
		string(payload), createdByID, createdByEmail,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("insert appeal: %w", err)
	}
	return id, nil
}

// FindAppeal returns the appeal submitted for a penalty.
func (s *PostgresStore) FindAppeal(ctx context.Context, companyNumber, penaltyReference string) (appeal.Appeal, error) {
	return s.scanAppeal(s.db.QueryRowContext(ctx, `
		SELECT id::text, payload FROM appeals
		WHERE company_number = $1 AND penalty_reference = $2
	`, companyNumber, penaltyReference))
}

func (s *PostgresStore) GetAppeal(ctx context.Context, companyNumber, id string) (appeal.Appeal, error) {
	return s.scanAppeal(s.db.QueryRowContext(ctx, `
		SELECT id::text, payload FROM appeals
		WHERE company_number = $1 AND id::text = $2
	`, companyNumber, id))
}

func (s *PostgresStore) scanAppeal(row *sql.Row) (appeal.Appeal, error) {
	var id string
	var payload []byte
	if err := row.Scan(&id, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appeal.Appeal{}, ErrNotFound
		}
		return appeal.Appeal{}, fmt.Errorf("load appeal: %w", err)
	}
	var a appeal.Appeal
	if err := json.Unmarshal(payload, &a); err != nil {
		return appeal.Appeal{}, fmt.Errorf("decode appeal %s: %w", id, err)
	}
	a.ID = id
	return a, nil
}

// LatePenalties lists the company's late filing penalties that still have
// an amount outstanding, oldest first. An unknown company yields
// ErrNotFound.
func (s *PostgresStore) LatePenalties(ctx context.Context, companyNumber string) (appeal.PenaltyList, error) {
	if _, err := s.CompanyName(ctx, companyNumber); err != nil {
		return appeal.PenaltyList{}, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, made_up_date, transaction_date, original_amount::float8, outstanding::float8
		FROM penalties
		WHERE company_number = $1 AND outstanding > 0
		ORDER BY made_up_date, id
	`, companyNumber)
	if err != nil {
		return appeal.PenaltyList{}, fmt.Errorf("query penalties: %w", err)
	}
	defer rows.Close()

	list := appeal.PenaltyList{Items: []appeal.Penalty{}}
	for rows.Next() {
		var p appeal.Penalty
		var madeUp, transaction time.Time
		if err := rows.Scan(&p.ID, &p.Type, &madeUp, &transaction, &p.OriginalAmount, &p.Outstanding); err != nil {
			return appeal.PenaltyList{}, fmt.Errorf("scan penalty: %w", err)
		}
		p.MadeUpDate = madeUp.Format(time.DateOnly)
		p.TransactionDate = transaction.Format(time.DateOnly)
		list.Items = append(list.Items, p)
	}
	if err := rows.Err(); err != nil {
		return appeal.PenaltyList{}, fmt.Errorf("iterate penalties: %w", err)
	}
	list.TotalResults = len(list.Items)
	return list, nil
}

func (s *PostgresStore) CompanyName(ctx context.Context, companyNumber string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT company_name FROM companies WHERE company_number = $1`, companyNumber).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load company: %w", err)
	}
	return name, nil
}

// SaveCompany upserts a company and its penalties.
func (s *PostgresStore) SaveCompany(ctx context.Context, companyNumber, name string, penalties []appeal.Penalty) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO companies (company_number, company_name) VALUES ($1, $2)
		ON CONFLICT (company_number) DO UPDATE SET company_name = EXCLUDED.company_name
	`, companyNumber, name); err != nil {
		return fmt.Errorf("upsert company: %w", err)
	}
	for _, p := range penalties {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO penalties (company_number, id, type, made_up_date, transaction_date, original_amount, outstanding)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (company_number, id) DO UPDATE SET
				type = EXCLUDED.type,
				made_up_date = EXCLUDED.made_up_date,
				transaction_date = EXCLUDED.transaction_date,
				original_amount = EXCLUDED.original_amount,
				outstanding = EXCLUDED.outstanding
		`, companyNumber, p.ID, p.Type, p.MadeUpDate, p.TransactionDate, p.OriginalAmount, p.Outstanding); err != nil {
			return fmt.Errorf("upsert penalty %s: %w", p.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit company: %w", err)
	}
	return nil
}
