package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/comptoir-pos/comptoir/internal/shared"
)

// Repository persists client data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldSearchTerm lowercases and strips diacritics so "Hédi" matches "hedi".
// The name_folded column stores the same folding, maintained by trigger.
func foldSearchTerm(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

const clientColumns = `id, name, email, phone, address, tax_id, is_active, created_at, updated_at`

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.TaxID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, shared.ErrNotFound
		}
		return Client{}, err
	}
	return c, nil
}

// Get loads one client by id.
func (r *Repository) Get(ctx context.Context, id int64) (Client, error) {
	return scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=$1`, id))
}

// Create inserts a client and returns its id.
func (r *Repository) Create(ctx context.Context, c Client) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO clients (name, name_folded, email, phone, address, tax_id, is_active)
VALUES ($1, $2, $3, $4, $5, $6, TRUE) RETURNING id`,
		c.Name, foldSearchTerm(c.Name), c.Email, c.Phone, c.Address, c.TaxID).Scan(&id)
	return id, err
}

// Update patches client columns.
func (r *Repository) Update(ctx context.Context, id int64, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	if name, ok := updates["name"]; ok {
		updates["name_folded"] = foldSearchTerm(name.(string))
	}
	sets := []string{"updated_at = NOW()"}
	args := []any{}
	for column, value := range updates {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	args = append(args, id)
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`UPDATE clients SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// List returns a filtered page of clients plus the total count. Search matches
// accent-folded name, email and phone.
func (r *Repository) List(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	conds := []string{"1=1"}
	args := []any{}
	if req.Search != nil && *req.Search != "" {
		args = append(args, "%"+foldSearchTerm(*req.Search)+"%")
		conds = append(conds, fmt.Sprintf("(name_folded LIKE $%d OR LOWER(email) LIKE $%d OR phone LIKE $%d)", len(args), len(args), len(args)))
	}
	if req.IsActive != nil {
		args = append(args, *req.IsActive)
		conds = append(conds, fmt.Sprintf("is_active = $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM clients WHERE %s ORDER BY name ASC LIMIT $%d OFFSET $%d`,
		clientColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Client{}
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.TaxID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}
