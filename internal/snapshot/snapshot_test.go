package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkurniadi/biliwatch/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestLoad_EmptyDatabase(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Sessions)
	assert.Empty(t, snap.Patients)
	assert.Equal(t, models.LightModeOff, snap.Panel.Mode)
	assert.False(t, snap.Panel.Fan)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ended := created.Add(90 * time.Minute)

	in := &Snapshot{
		Sessions: []*models.Session{
			{
				ID:        "s1",
				PatientID: "p1",
				TSB:       14.2,
				Duration:  120,
				Mode:      models.LightModeBoth,
				Status:    models.SessionStatusRunning,
				CreatedAt: created,
			},
			{
				ID:        "s2",
				PatientID: "p2",
				TSB:       11.0,
				Duration:  90,
				Mode:      models.LightModeLow,
				Status:    models.SessionStatusCompleted,
				CreatedAt: created.Add(-time.Hour),
				EndedAt:   &ended,
			},
		},
		Patients: []*models.Patient{
			{ID: "p1", Name: "Baby A", DateOfBirth: "2025-02-20", Weight: 3100, GestationalAge: 38},
			{ID: "p2", Name: "Baby B", DateOfBirth: "2025-02-25", Weight: 2800, GestationalAge: 36},
		},
		Panel: models.DevicePanel{Mode: models.LightModeHigh, Fan: true},
	}
	require.NoError(t, s.Save(ctx, in))

	out, err := s.Load(ctx)
	require.NoError(t, err)

	require.Len(t, out.Sessions, 2)
	assert.Equal(t, "s1", out.Sessions[0].ID, "insertion order preserved")
	assert.Equal(t, models.SessionStatusRunning, out.Sessions[0].Status)
	assert.Nil(t, out.Sessions[0].EndedAt)
	require.NotNil(t, out.Sessions[1].EndedAt)
	assert.True(t, out.Sessions[1].EndedAt.Equal(ended))
	assert.Equal(t, 14.2, out.Sessions[0].TSB)

	require.Len(t, out.Patients, 2)
	assert.Equal(t, "Baby A", out.Patients[0].Name)
	assert.Equal(t, 38, out.Patients[0].GestationalAge)

	assert.Equal(t, models.LightModeHigh, out.Panel.Mode)
	assert.True(t, out.Panel.Fan)
	assert.False(t, out.SavedAt.IsZero())
}

func TestSave_ReplacesWholesale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &Snapshot{
		Sessions: []*models.Session{{
			ID: "s1", PatientID: "p1", Status: models.SessionStatusRunning,
			CreatedAt: time.Now().UTC(),
		}},
		Panel: models.DevicePanel{Mode: models.LightModeLow},
	}
	require.NoError(t, s.Save(ctx, first))

	second := &Snapshot{
		Sessions: []*models.Session{{
			ID: "s9", PatientID: "p9", Status: models.SessionStatusStopped,
			CreatedAt: time.Now().UTC(),
		}},
		Panel: models.DevicePanel{Mode: models.LightModeOff, Fan: false},
	}
	require.NoError(t, s.Save(ctx, second))

	out, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out.Sessions, 1)
	assert.Equal(t, "s9", out.Sessions[0].ID, "a later snapshot fully replaces an earlier one")
	assert.Equal(t, models.LightModeOff, out.Panel.Mode)
}

func TestSavePanel_LeavesSessionsAlone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &Snapshot{
		Sessions: []*models.Session{{
			ID: "s1", PatientID: "p1", Status: models.SessionStatusRunning,
			CreatedAt: time.Now().UTC(),
		}},
		Panel: models.DevicePanel{Mode: models.LightModeLow},
	}))

	require.NoError(t, s.SavePanel(ctx, models.DevicePanel{Mode: models.LightModeBoth, Fan: true}))

	out, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, out.Sessions, 1)
	assert.Equal(t, models.LightModeBoth, out.Panel.Mode)
	assert.True(t, out.Panel.Fan)
}
