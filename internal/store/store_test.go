package store

import (
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "studies"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func sidecar(role domain.Role, lat, lon float64) Sidecar {
	return Sidecar{
		Bounds:      domain.Bounds{South: lat - 0.1, West: lon - 0.1, North: lat + 0.1, East: lon + 0.1},
		Role:        role,
		Template:    "Brazil_V6",
		Transmitter: domain.Transmitter{Lat: lat, Lon: lon, Height: 15},
	}
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "main_brazil_v6_m21_500000_m47_125000", ArtifactName(domain.RoleMain, "Brazil_V6", -21.5, -47.125))
	assert.Equal(t, "repeater_europe_v6_xr_45_000001_7_000000", ArtifactName(domain.RoleRepeater, "Europe_V6_XR", 45.000001, 7))
}

func TestCreateStudy(t *testing.T) {
	frozen := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { domain.SetClock(nil) })

	s := testStore(t)
	id, err := s.CreateStudy([]byte("PK\x03\x04kmz"))
	require.NoError(t, err)

	input, err := s.Input(id)
	require.NoError(t, err)
	assert.Equal(t, "PK\x03\x04kmz", string(input))

	m, err := s.Manifest(id)
	require.NoError(t, err)
	assert.Equal(t, id, m.StudyID)
	assert.True(t, frozen.Equal(m.CreatedAt))
	assert.Empty(t, m.Artifacts)
}

func TestUnknownStudy(t *testing.T) {
	s := testStore(t)
	for _, id := range []string{"../../etc", "not-a-uuid", "6f1c3f1e-4d7b-4b8e-9a59-3d1f0f4e7a10"} {
		_, err := s.Input(id)
		assert.ErrorIs(t, err, domain.ErrStudyNotFound, id)
		_, err = s.Manifest(id)
		assert.ErrorIs(t, err, domain.ErrStudyNotFound, id)
	}
}

func TestSaveOverlay_RoundTrip(t *testing.T) {
	s := testStore(t)
	id, err := s.CreateStudy([]byte("kmz"))
	require.NoError(t, err)

	ov, err := s.SaveOverlay(id, sidecar(domain.RoleMain, -21.5, -47.1), []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleMain, ov.Role)
	assert.Equal(t, "Brazil_V6", ov.TemplateID)
	assert.FileExists(t, ov.RasterPath)

	raw, err := os.ReadFile(filepath.Join(filepath.Dir(ov.RasterPath), "main_brazil_v6_m21_500000_m47_100000.json"))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Len(t, decoded["bounds"], 4)
	assert.Equal(t, "main", decoded["role"])

	overlays, err := s.Overlays(id)
	require.NoError(t, err)
	require.Len(t, overlays, 1)
	assert.Equal(t, ov, overlays[0])
}

func TestReplaceRole_RemovesOnlyThatRole(t *testing.T) {
	s := testStore(t)
	id, err := s.CreateStudy([]byte("kmz"))
	require.NoError(t, err)

	mainOv, err := s.SaveOverlay(id, sidecar(domain.RoleMain, 1, 1), []byte("a"))
	require.NoError(t, err)
	rep, err := s.SaveOverlay(id, sidecar(domain.RoleRepeater, 2, 2), []byte("b"))
	require.NoError(t, err)

	require.NoError(t, s.ReplaceRole(id, domain.RoleMain))

	assert.NoFileExists(t, mainOv.RasterPath)
	assert.FileExists(t, rep.RasterPath)

	m, err := s.Manifest(id)
	require.NoError(t, err)
	require.Len(t, m.Artifacts, 1)
	assert.Equal(t, domain.RoleRepeater, m.Artifacts[0].Role)

	require.NoError(t, s.ReplaceRole(id, domain.RoleMain), "nothing left to replace")
}

func TestOverlays_SkipsIncompletePairs(t *testing.T) {
	s := testStore(t)
	id, err := s.CreateStudy([]byte("kmz"))
	require.NoError(t, err)

	noSidecar, err := s.SaveOverlay(id, sidecar(domain.RoleMain, 1, 1), []byte("a"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(noSidecar.RasterPath[:len(noSidecar.RasterPath)-len(".png")]+".json"))

	noRaster, err := s.SaveOverlay(id, sidecar(domain.RoleRepeater, 2, 2), []byte("b"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(noRaster.RasterPath))

	complete, err := s.SaveOverlay(id, sidecar(domain.RoleRepeater, 3, 3), []byte("c"))
	require.NoError(t, err)

	overlays, err := s.Overlays(id)
	require.NoError(t, err)
	require.Len(t, overlays, 1)
	assert.Equal(t, complete.Name, overlays[0].Name)
}

func TestRasterPath_RejectsTraversal(t *testing.T) {
	s := testStore(t)
	id, err := s.CreateStudy([]byte("kmz"))
	require.NoError(t, err)

	for _, name := range []string{"", "../input.kmz", "manifest.json", "images/x.png", "missing.png"} {
		_, err := s.RasterPath(id, name)
		assert.ErrorIs(t, err, fs.ErrNotExist, name)
	}
}

func TestSavePivots(t *testing.T) {
	s := testStore(t)
	id, err := s.CreateStudy([]byte("kmz"))
	require.NoError(t, err)

	pivots := []domain.Pivot{domain.Pivot{Name: "Pivô 1", Lat: 1, Lon: 2}.WithOutside(false)}
	require.NoError(t, s.SavePivots(id, pivots))

	m, err := s.Manifest(id)
	require.NoError(t, err)
	assert.Equal(t, pivots, m.Pivots)
}

func TestCheckWritable(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.CheckWritable())

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Empty(t, entries, "write-check file removed")
}
