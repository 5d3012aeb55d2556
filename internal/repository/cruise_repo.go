package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"icruise-backend/internal/models"
)

// CruiseFilter describes one read against the catalog. Phrase and Words are
// mutually exclusive match modes: a non-empty Phrase runs the full-phrase
// pass (with tags matched per word), while Words alone runs the per-word
// pass over name, route, and description. Empty sub-filters are omitted.
type CruiseFilter struct {
	Phrase   string
	Words    []string
	MaxPrice int
	Duration string
	Limit    int
}

type CruiseRepo struct {
	pool *pgxpool.Pool
}

func NewCruiseRepo(pool *pgxpool.Pool) *CruiseRepo {
	return &CruiseRepo{pool: pool}
}

const cruiseColumns = "id, name, route, description, tags, price, duration, image_url, is_active, created_at"

func (r *CruiseRepo) Search(ctx context.Context, f CruiseFilter) ([]*models.Cruise, error) {
	conds := []string{"is_active = TRUE"}
	var args []interface{}
	argIdx := 1

	switch {
	case f.Phrase != "":
		args = append(args, "%"+f.Phrase+"%")
		phraseIdx := argIdx
		argIdx++

		text := fmt.Sprintf("name ILIKE $%d OR route ILIKE $%d OR description ILIKE $%d",
			phraseIdx, phraseIdx, phraseIdx)

		var tagConds []string
		if len(f.Words) > 0 {
			for _, w := range f.Words {
				args = append(args, "%"+w+"%")
				tagConds = append(tagConds,
					fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(tags) AS tag WHERE tag ILIKE $%d)", argIdx))
				argIdx++
			}
		} else {
			// No words survived filtering; match tags on the raw phrase.
			tagConds = append(tagConds,
				fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(tags) AS tag WHERE tag ILIKE $%d)", phraseIdx))
		}

		conds = append(conds, "("+text+" OR "+strings.Join(tagConds, " OR ")+")")

	case len(f.Words) > 0:
		var wordConds []string
		for _, w := range f.Words {
			args = append(args, "%"+w+"%")
			wordConds = append(wordConds,
				fmt.Sprintf("(name ILIKE $%d OR route ILIKE $%d OR description ILIKE $%d)", argIdx, argIdx, argIdx))
			argIdx++
		}
		conds = append(conds, "("+strings.Join(wordConds, " OR ")+")")
	}

	if f.MaxPrice > 0 {
		conds = append(conds, fmt.Sprintf("price <= $%d", argIdx))
		args = append(args, f.MaxPrice)
		argIdx++
	}

	if f.Duration != "" {
		conds = append(conds, fmt.Sprintf("duration ILIKE $%d", argIdx))
		args = append(args, "%"+f.Duration+"%")
		argIdx++
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 3
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM cruises WHERE %s ORDER BY price ASC, created_at DESC LIMIT $%d`,
		cruiseColumns, strings.Join(conds, " AND "), argIdx)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCruises(rows)
}

func (r *CruiseRepo) List(ctx context.Context, search string, maxPrice int, duration string, limit, offset int) ([]*models.Cruise, int, error) {
	conds := []string{"is_active = TRUE"}
	var args []interface{}
	argIdx := 1

	if search != "" {
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR route ILIKE $%d OR description ILIKE $%d)", argIdx, argIdx, argIdx))
		args = append(args, "%"+search+"%")
		argIdx++
	}

	if maxPrice > 0 {
		conds = append(conds, fmt.Sprintf("price <= $%d", argIdx))
		args = append(args, maxPrice)
		argIdx++
	}

	if duration != "" {
		conds = append(conds, fmt.Sprintf("duration ILIKE $%d", argIdx))
		args = append(args, "%"+duration+"%")
		argIdx++
	}

	where := "WHERE " + strings.Join(conds, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM cruises " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM cruises %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		cruiseColumns, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	cruises, err := scanCruises(rows)
	if err != nil {
		return nil, 0, err
	}

	return cruises, total, nil
}

func (r *CruiseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Cruise, error) {
	c := &models.Cruise{}
	query := fmt.Sprintf("SELECT %s FROM cruises WHERE id = $1", cruiseColumns)

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Route, &c.Description, &c.Tags,
		&c.Price, &c.Duration, &c.ImageURL, &c.IsActive, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func scanCruises(rows pgx.Rows) ([]*models.Cruise, error) {
	var cruises []*models.Cruise
	for rows.Next() {
		c := &models.Cruise{}
		err := rows.Scan(
			&c.ID, &c.Name, &c.Route, &c.Description, &c.Tags,
			&c.Price, &c.Duration, &c.ImageURL, &c.IsActive, &c.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		cruises = append(cruises, c)
	}
	return cruises, rows.Err()
}
