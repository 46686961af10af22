package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

const sampleKML = `<kml><Document>
<Placemark><name>Antena 25m</name><Point><coordinates>-47.0,-21.0</coordinates></Point></Placemark>
<Placemark><name>Pivô 1</name><Point><coordinates>-47.1,-21.1</coordinates></Point></Placemark>
</Document></kml>`

func runExtract(t *testing.T, content string, extra ...string) (domain.Entities, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "farm.kml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	var out bytes.Buffer
	cmd := rootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"extract", path}, extra...))
	err := cmd.Execute()

	var ents domain.Entities
	if out.Len() > 0 {
		require.NoError(t, json.Unmarshal(out.Bytes(), &ents))
	}
	return ents, err
}

func TestExtractCommand(t *testing.T) {
	ents, err := runExtract(t, sampleKML)
	require.NoError(t, err)
	require.NotNil(t, ents.Antenna)
	assert.Equal(t, 25, ents.Antenna.Height)
	require.Len(t, ents.Pivots, 1)
	assert.Equal(t, "Pivô 1", ents.Pivots[0].Name)
}

func TestExtractCommand_NoAntennaStillPrints(t *testing.T) {
	ents, err := runExtract(t, `<kml><Placemark><name>Pivô 9</name><Point><coordinates>1,2</coordinates></Point></Placemark></kml>`)
	require.ErrorIs(t, err, domain.ErrAntennaNotFound)
	assert.Nil(t, ents.Antenna)
	assert.Len(t, ents.Pivots, 1)
}

func TestExtractCommand_StrictAntenna(t *testing.T) {
	kml := `<kml><Document>
<Placemark><name>Torre A</name><Point><coordinates>1,1</coordinates></Point></Placemark>
<Placemark><name>Torre B</name><Point><coordinates>2,2</coordinates></Point></Placemark>
</Document></kml>`
	_, err := runExtract(t, kml, "--strict-antenna")
	require.ErrorIs(t, err, domain.ErrAmbiguousAntenna)
}

func TestExtractCommand_InvalidLogLevel(t *testing.T) {
	_, err := runExtract(t, sampleKML, "--log-level", "chatty")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--log-level")
}
