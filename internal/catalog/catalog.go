// Package catalog keeps a sqlite record of generated meshes so runs
// can be compared and re-found later: which layout produced which mesh
// file, element counts, and the tetrahedron quality summary.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/qdevlab/devicegen/internal/timeutil"
)

type Catalog struct {
	*sql.DB

	// Clock supplies insert timestamps. Tests swap in a MockClock.
	Clock timeutil.Clock
}

// Open opens (or creates) the catalog database at path and applies any
// pending schema migrations.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	c := &Catalog{DB: db, Clock: timeutil.RealClock{}}
	if err := c.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog schema: %w", err)
	}
	return c, nil
}

// Build is one recorded mesh generation run.
type Build struct {
	ID          string
	LayoutFile  string
	MeshFile    string
	MeshDim     int
	MeshOrder   int
	NodeCount   int
	TriCount    int
	TetCount    int
	QualityMin  float64
	QualityMean float64
	CreatedAt   time.Time
}

// RecordBuild inserts a build row. A missing ID is filled in with a
// fresh UUID; the assigned ID is returned.
func (c *Catalog) RecordBuild(b Build) (string, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = c.Clock.Now().UTC()
	}

	_, err := c.Exec(`
		INSERT INTO builds (
			build_id, layout_file, mesh_file, mesh_dim, mesh_order,
			node_count, triangle_count, tet_count,
			quality_min, quality_mean, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.LayoutFile, b.MeshFile, b.MeshDim, b.MeshOrder,
		b.NodeCount, b.TriCount, b.TetCount,
		b.QualityMin, b.QualityMean, b.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("record build: %w", err)
	}
	return b.ID, nil
}

// GetBuild returns the build with the given ID.
func (c *Catalog) GetBuild(id string) (Build, error) {
	row := c.QueryRow(`
		SELECT build_id, layout_file, mesh_file, mesh_dim, mesh_order,
		       node_count, triangle_count, tet_count,
		       quality_min, quality_mean, created_at
		FROM builds WHERE build_id = ?`, id)
	return scanBuild(row)
}

// ListBuilds returns the most recent builds, newest first. limit <= 0
// means no limit.
func (c *Catalog) ListBuilds(limit int) ([]Build, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.Query(`
		SELECT build_id, layout_file, mesh_file, mesh_dim, mesh_order,
		       node_count, triangle_count, tet_count,
		       quality_min, quality_mean, created_at
		FROM builds ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

// BuildsForLayout returns all builds recorded for a layout file,
// newest first.
func (c *Catalog) BuildsForLayout(layoutFile string) ([]Build, error) {
	rows, err := c.Query(`
		SELECT build_id, layout_file, mesh_file, mesh_dim, mesh_order,
		       node_count, triangle_count, tet_count,
		       quality_min, quality_mean, created_at
		FROM builds WHERE layout_file = ? ORDER BY created_at DESC`, layoutFile)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	return builds, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuild(row rowScanner) (Build, error) {
	var b Build
	var created string
	err := row.Scan(
		&b.ID, &b.LayoutFile, &b.MeshFile, &b.MeshDim, &b.MeshOrder,
		&b.NodeCount, &b.TriCount, &b.TetCount,
		&b.QualityMin, &b.QualityMean, &created,
	)
	if err != nil {
		return Build{}, err
	}
	if t, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
		b.CreatedAt = t
	}
	return b, nil
}
