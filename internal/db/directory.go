package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonathan/resourcewise/internal/types"
)

// -----------------------------------------------------------------------------
// Directory lookups
// -----------------------------------------------------------------------------

// Directory answers ranked lookups over one name column: designation titles or skill names.
type Directory struct {
	db    *DB
	table string
	name  string
	// active names a boolean column rows must have set, or is empty.
	active string
}

// Designations returns the directory over active designation titles.
func (db *DB) Designations() *Directory {
	return &Directory{db: db, table: "designations", name: "title", active: "is_active"}
}

// SkillDirectory returns the directory over recorded employee skill names.
func (db *DB) SkillDirectory() *Directory {
	return &Directory{db: db, table: "employee_skills", name: "skill_name"}
}

// FuzzySearch ranks names by the greater of full-text rank and trigram similarity.
// Only matches scoring strictly above threshold are returned, best first, ties by name.
func (d *Directory) FuzzySearch(ctx context.Context, term string, threshold float64, limit int) ([]types.Match, error) {
	term = strings.TrimSpace(term)
	if term == "" || limit <= 0 {
		return nil, nil
	}

	return d.collect(ctx, "fuzzy search", d.fuzzyQuery(), term, threshold, limit)
}

func (d *Directory) fuzzyQuery() string {
	return fmt.Sprintf(
		`SELECT name, score FROM (
		   SELECT %[1]s AS name,
		          MAX(GREATEST(
		              ts_rank(to_tsvector('english', %[1]s), plainto_tsquery('english', $1)),
		              similarity(%[1]s, $1))) AS score
		   FROM %[2]s
		   WHERE (to_tsvector('english', %[1]s) @@ plainto_tsquery('english', $1)
		      OR similarity(%[1]s, $1) > $2)%[3]s
		   GROUP BY %[1]s
		 ) ranked
		 WHERE score > $2
		 ORDER BY score DESC, name ASC
		 LIMIT $3`,
		d.name, d.table, d.activeFilter(),
	)
}

// EmbeddingSearch ranks names by cosine similarity to vector.
// Only matches with similarity strictly above threshold are returned, best first, ties by name.
func (d *Directory) EmbeddingSearch(ctx context.Context, vector []float32, threshold float64, limit int) ([]types.Match, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}

	return d.collect(ctx, "embedding search", d.embeddingQuery(), VectorLiteral(vector), threshold, limit)
}

func (d *Directory) embeddingQuery() string {
	return fmt.Sprintf(
		`SELECT name, score FROM (
		   SELECT %[1]s AS name, MAX(1 - (embedding <=> $1::vector)) AS score
		   FROM %[2]s
		   WHERE embedding IS NOT NULL%[3]s
		   GROUP BY %[1]s
		 ) ranked
		 WHERE score > $2
		 ORDER BY score DESC, name ASC
		 LIMIT $3`,
		d.name, d.table, d.activeFilter(),
	)
}

// Names returns every distinct name in the directory, sorted.
func (d *Directory) Names(ctx context.Context) ([]string, error) {
	rows, err := d.db.pool.Query(ctx, d.namesQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", d.table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan %s name: %w", d.table, err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (d *Directory) namesQuery() string {
	return fmt.Sprintf(`SELECT DISTINCT %[1]s FROM %[2]s WHERE %[1]s IS NOT NULL%[3]s ORDER BY %[1]s`,
		d.name, d.table, d.activeFilter())
}

func (d *Directory) activeFilter() string {
	if d.active == "" {
		return ""
	}
	return " AND " + d.active
}

// Skills is Names under the name the resolver expects from a skill directory.
func (d *Directory) Skills(ctx context.Context) ([]string, error) {
	return d.Names(ctx)
}

func (d *Directory) collect(ctx context.Context, op, query string, args ...any) ([]types.Match, error) {
	rows, err := d.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s on %s: %w", op, d.table, err)
	}
	defer rows.Close()

	var matches []types.Match
	for rows.Next() {
		var m types.Match
		if err := rows.Scan(&m.Name, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan %s result: %w", op, err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s results: %w", op, err)
	}
	return matches, nil
}

// VectorLiteral formats v in pgvector text form, e.g. [0.1,0.2].
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*10 + 2)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
