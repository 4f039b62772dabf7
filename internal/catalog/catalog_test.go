package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qdevlab/devicegen/internal/timeutil"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestOpenAppliesMigrations(t *testing.T) {
	c := openTestCatalog(t)

	version, dirty, err := c.MigrateVersion()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)
}

func TestRecordBuildAssignsID(t *testing.T) {
	c := openTestCatalog(t)

	id, err := c.RecordBuild(Build{
		LayoutFile:  "chip.txt",
		MeshFile:    "chip.msh2",
		MeshDim:     3,
		MeshOrder:   1,
		NodeCount:   120,
		TriCount:    48,
		TetCount:    300,
		QualityMin:  0.31,
		QualityMean: 0.74,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := c.GetBuild(id)
	require.NoError(t, err)
	require.Equal(t, "chip.txt", got.LayoutFile)
	require.Equal(t, "chip.msh2", got.MeshFile)
	require.Equal(t, 3, got.MeshDim)
	require.Equal(t, 1, got.MeshOrder)
	require.Equal(t, 300, got.TetCount)
	require.InDelta(t, 0.74, got.QualityMean, 1e-12)
	require.False(t, got.CreatedAt.IsZero())
}

func TestRecordBuildKeepsExplicitID(t *testing.T) {
	c := openTestCatalog(t)

	id, err := c.RecordBuild(Build{ID: "run-1", LayoutFile: "a.geo", MeshFile: "a.msh2"})
	require.NoError(t, err)
	require.Equal(t, "run-1", id)

	// Duplicate IDs are rejected by the primary key.
	_, err = c.RecordBuild(Build{ID: "run-1", LayoutFile: "a.geo", MeshFile: "a.msh2"})
	require.Error(t, err)
}

func TestRecordBuildUsesClock(t *testing.T) {
	c := openTestCatalog(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Clock = timeutil.NewMockClock(at)

	id, err := c.RecordBuild(Build{LayoutFile: "a.geo", MeshFile: "a.msh2"})
	require.NoError(t, err)

	got, err := c.GetBuild(id)
	require.NoError(t, err)
	require.True(t, got.CreatedAt.Equal(at))
}

func TestListBuildsNewestFirst(t *testing.T) {
	c := openTestCatalog(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := c.RecordBuild(Build{
			LayoutFile: "chip.txt",
			MeshFile:   "chip.msh2",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	builds, err := c.ListBuilds(2)
	require.NoError(t, err)
	require.Len(t, builds, 2)
	require.True(t, builds[0].CreatedAt.After(builds[1].CreatedAt))

	all, err := c.ListBuilds(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestBuildsForLayout(t *testing.T) {
	c := openTestCatalog(t)

	_, err := c.RecordBuild(Build{LayoutFile: "a.geo", MeshFile: "a.msh2"})
	require.NoError(t, err)
	_, err = c.RecordBuild(Build{LayoutFile: "b.geo", MeshFile: "b.msh2"})
	require.NoError(t, err)

	builds, err := c.BuildsForLayout("a.geo")
	require.NoError(t, err)
	require.Len(t, builds, 1)
	require.Equal(t, "a.msh2", builds[0].MeshFile)
}

func TestMigrateDown(t *testing.T) {
	c := openTestCatalog(t)

	require.NoError(t, c.MigrateDown())
	version, _, err := c.MigrateVersion()
	require.NoError(t, err)
	require.Equal(t, uint(0), version)

	// Table is gone after rolling back.
	_, err = c.RecordBuild(Build{LayoutFile: "a.geo", MeshFile: "a.msh2"})
	require.Error(t, err)
}
