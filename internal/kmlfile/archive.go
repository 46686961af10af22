package kmlfile

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

var zipMagic = []byte("PK\x03\x04")

// maxKMLBytes caps a single decompressed KML entry.
const maxKMLBytes = 64 << 20

// ReadArchive returns the KML document carried by data. A zip payload is
// treated as KMZ and its first .kml entry is returned; anything that looks
// like XML is returned unchanged.
func ReadArchive(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", domain.ErrInvalidKMZ)
	}
	if bytes.HasPrefix(data, zipMagic) {
		return readKMZ(data)
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<")) {
		return data, nil
	}
	return nil, fmt.Errorf("%w: neither a zip archive nor an XML document", domain.ErrInvalidKMZ)
}

func readKMZ(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open zip: %v", domain.ErrInvalidKMZ, err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(f.Name), ".kml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", domain.ErrInvalidKMZ, f.Name, err)
		}
		kml, err := io.ReadAll(io.LimitReader(rc, maxKMLBytes))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrInvalidKMZ, f.Name, err)
		}
		return kml, nil
	}
	return nil, fmt.Errorf("%w: archive has no .kml entry", domain.ErrInvalidKMZ)
}
