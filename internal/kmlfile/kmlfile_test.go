package kmlfile

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

const farmKML = `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.2">
  <Document>
    <name>Farm</name>
    <Placemark>
      <name> Torre 30m </name>
      <Point><coordinates>-47.10,-21.50,0</coordinates></Point>
    </Placemark>
    <Folder>
      <name>Pivots</name>
      <Folder>
        <Placemark>
          <name>Pivô 1</name>
          <Point><coordinates>-47.11,-21.51</coordinates></Point>
        </Placemark>
      </Folder>
    </Folder>
    <Placemark>
      <name>Medida do círculo Pivô 2</name>
      <LineString>
        <coordinates>
          -47.0,-21.0,0 -47.1,-21.0,0
          -47.1,-21.1,0
        </coordinates>
      </LineString>
    </Placemark>
    <Placemark>
      <name>Área</name>
      <Polygon><outerBoundaryIs><LinearRing>
        <coordinates>1,2 3,4 5,6</coordinates>
      </LinearRing></outerBoundaryIs></Polygon>
    </Placemark>
  </Document>
</kml>`

func TestDecode_FlattensNestedFolders(t *testing.T) {
	doc, err := Decode(strings.NewReader(farmKML))
	require.NoError(t, err)
	require.Len(t, doc.Placemarks, 4)

	tower := doc.Placemarks[0]
	assert.Equal(t, "Torre 30m", tower.Name)
	require.NotNil(t, tower.Point)
	assert.Equal(t, "-47.10,-21.50,0", tower.Point.Coordinates)
	assert.Nil(t, tower.LineString)

	assert.Equal(t, "Pivô 1", doc.Placemarks[1].Name)
	require.NotNil(t, doc.Placemarks[2].LineString)
	assert.Nil(t, doc.Placemarks[2].Point)

	assert.Equal(t, "Área", doc.Placemarks[3].Name)
	assert.Nil(t, doc.Placemarks[3].LineString, "polygons are not circle measurements")
	assert.Nil(t, doc.Placemarks[3].Point)
}

func TestDecode_MultiGeometry(t *testing.T) {
	const src = `<kml><Placemark><name>P7</name><MultiGeometry>
		<Point><coordinates>1,2</coordinates></Point>
		<LineString><coordinates>1,2 3,4</coordinates></LineString>
	</MultiGeometry></Placemark></kml>`

	doc, err := Decode(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, doc.Placemarks, 1)
	assert.NotNil(t, doc.Placemarks[0].Point)
	assert.NotNil(t, doc.Placemarks[0].LineString)
}

func TestDecode_Latin1Charset(t *testing.T) {
	src := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><kml><Placemark><name>Piv\xf4 9</name>" +
		"<Point><coordinates>1,2</coordinates></Point></Placemark></kml>")

	doc, err := Decode(bytes.NewReader(src))
	require.NoError(t, err)
	require.Len(t, doc.Placemarks, 1)
	assert.Equal(t, "Pivô 9", doc.Placemarks[0].Name)
}

func TestDecode_Malformed(t *testing.T) {
	for name, src := range map[string]string{
		"truncated": "<kml><Placemark><name>x</name>",
		"no root":   `<?xml version="1.0"?>`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(src))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidKMZ)
		})
	}
}

func TestReadArchive_KMZ(t *testing.T) {
	kmz := buildKMZ(t, map[string]string{
		"images/readme.txt": "not kml",
		"doc.kml":           farmKML,
	})

	kml, err := ReadArchive(kmz)
	require.NoError(t, err)
	assert.Equal(t, farmKML, string(kml))

	doc, err := Parse(kmz)
	require.NoError(t, err)
	assert.Len(t, doc.Placemarks, 4)
}

func TestReadArchive_BareKML(t *testing.T) {
	kml, err := ReadArchive([]byte("\n  " + farmKML))
	require.NoError(t, err)
	assert.Contains(t, string(kml), "<kml")
}

func TestReadArchive_Rejects(t *testing.T) {
	tests := map[string][]byte{
		"empty":      nil,
		"binary":     {0x00, 0x01, 0x02},
		"zip no kml": buildKMZ(t, map[string]string{"a.txt": "x"}),
		"broken zip": []byte("PK\x03\x04garbage"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadArchive(data)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidKMZ)
		})
	}
}

func TestParseCoordinates(t *testing.T) {
	coords, skipped := ParseCoordinates(" -47.1,-21.5,0\n-47.2,-21.6  bad 1,x 3,NaN 5,6,7 ")
	assert.Equal(t, 3, skipped)
	assert.Equal(t, []domain.Coordinate{
		{Lat: -21.5, Lon: -47.1},
		{Lat: -21.6, Lon: -47.2},
		{Lat: 6, Lon: 5},
	}, coords)
}

func TestParseCoordinates_SpaceAroundCommas(t *testing.T) {
	coords, skipped := ParseCoordinates("-47.5, -15.5, 0\n\t-47.6 ,-15.6  -47.7 , -15.7")
	assert.Zero(t, skipped)
	assert.Equal(t, []domain.Coordinate{
		{Lat: -15.5, Lon: -47.5},
		{Lat: -15.6, Lon: -47.6},
		{Lat: -15.7, Lon: -47.7},
	}, coords)
}

func TestParsePoint(t *testing.T) {
	c, ok := ParsePoint("10.5,20.25,100")
	require.True(t, ok)
	assert.Equal(t, domain.Coordinate{Lat: 20.25, Lon: 10.5}, c)

	c, ok = ParsePoint("  -47.0, -15.0 ")
	require.True(t, ok)
	assert.Equal(t, domain.Coordinate{Lat: -15.0, Lon: -47.0}, c)

	_, ok = ParsePoint("10.5")
	assert.False(t, ok)
}

func buildKMZ(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	// Deterministic order: non-kml entries first so the scan has to skip them.
	for _, kmlFirst := range []bool{false, true} {
		for name, body := range files {
			if strings.HasSuffix(name, ".kml") != kmlFirst {
				continue
			}
			w, err := zw.Create(name)
			require.NoError(t, err)
			_, err = w.Write([]byte(body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
