package opentopo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
	"github.com/couchcryptid/pivot-coverage-service/internal/observability"
)

const testBaseURL = "https://elevation.test/v1/srtm90m"

func testClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	c := NewClient(testBaseURL, 5*time.Second, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	mt := httpmock.NewMockTransport()
	c.httpClient.Transport = mt
	return c, mt
}

// echoResponder answers with one elevation per requested location, equal to
// the location's index, or null where nullAt says so.
func echoResponder(nullAt map[int]bool) httpmock.Responder {
	return func(req *http.Request) (*http.Response, error) {
		locs := strings.Split(req.URL.Query().Get("locations"), "|")
		parts := make([]string, len(locs))
		for i := range locs {
			if nullAt[i] {
				parts[i] = `{"elevation":null}`
			} else {
				parts[i] = fmt.Sprintf(`{"elevation":%d}`, i)
			}
		}
		return httpmock.NewStringResponse(http.StatusOK, `{"status":"OK","results":[`+strings.Join(parts, ",")+`]}`), nil
	}
}

func coords(n int) []domain.Coordinate {
	out := make([]domain.Coordinate, n)
	for i := range out {
		out[i] = domain.Coordinate{Lat: -21 + float64(i)*0.001, Lon: -47}
	}
	return out
}

func TestClient_Elevations_Success(t *testing.T) {
	c, mt := testClient(t)
	mt.RegisterResponder(http.MethodGet, testBaseURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "-21.000000,-47.000000|-21.001000,-47.000000", req.URL.Query().Get("locations"))
		return httpmock.NewStringResponse(http.StatusOK,
			`{"status":"OK","results":[{"elevation":612.5,"location":{"lat":-21,"lng":-47}},{"elevation":null}]}`), nil
	})

	got, err := c.Elevations(context.Background(), coords(2))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0])
	assert.InDelta(t, 612.5, *got[0], 1e-9)
	assert.Nil(t, got[1])
}

func TestClient_Elevations_Chunks(t *testing.T) {
	c, mt := testClient(t)
	mt.RegisterResponder(http.MethodGet, testBaseURL, echoResponder(nil))

	got, err := c.Elevations(context.Background(), coords(251))
	require.NoError(t, err)
	require.Len(t, got, 251)
	assert.Equal(t, 3, mt.GetTotalCallCount())
	assert.InDelta(t, 0, *got[100], 0, "second chunk restarts numbering")
	assert.InDelta(t, 50, *got[250], 0)
}

func TestClient_Elevations_StatusError(t *testing.T) {
	c, mt := testClient(t)
	mt.RegisterResponder(http.MethodGet, testBaseURL,
		httpmock.NewStringResponder(http.StatusBadRequest, `{"status":"INVALID_REQUEST","error":"Too many locations"}`))

	_, err := c.Elevations(context.Background(), coords(2))
	var ue *domain.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusBadRequest, ue.StatusCode)
	assert.Contains(t, ue.Body, "Too many locations")
}

func TestClient_Elevations_Malformed(t *testing.T) {
	tests := map[string]struct {
		body string
		want error
	}{
		"not json":   {`oops`, domain.ErrUpstreamMalformed},
		"bad status": {`{"status":"SERVER_ERROR","results":[]}`, domain.ErrUpstreamMalformed},
		"short":      {`{"status":"OK","results":[{"elevation":1}]}`, domain.ErrElevationCount},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			c, mt := testClient(t)
			mt.RegisterResponder(http.MethodGet, testBaseURL, httpmock.NewStringResponder(http.StatusOK, tt.body))

			_, err := c.Elevations(context.Background(), coords(2))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_Elevations_Unavailable(t *testing.T) {
	c, mt := testClient(t)
	mt.RegisterResponder(http.MethodGet, testBaseURL, httpmock.NewErrorResponder(errors.New("connection reset")))

	_, err := c.Elevations(context.Background(), coords(1))
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

// stalledBody yields a partial JSON document and then the error a client
// timeout produces mid-read.
type stalledBody struct{ sent bool }

func (b *stalledBody) Read(p []byte) (int, error) {
	if b.sent {
		return 0, os.ErrDeadlineExceeded
	}
	b.sent = true
	return copy(p, `{"status":"OK","results":[`), nil
}

func (b *stalledBody) Close() error { return nil }

func TestClient_Elevations_TimeoutWhileReadingBody(t *testing.T) {
	c, mt := testClient(t)
	mt.RegisterResponder(http.MethodGet, testBaseURL, func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusOK, "")
		resp.Body = &stalledBody{}
		return resp, nil
	})

	_, err := c.Elevations(context.Background(), coords(1))
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, domain.ErrUpstreamMalformed)
}

type countingProvider struct {
	calls  [][]domain.Coordinate
	values func(points []domain.Coordinate) []*float64
	err    error
}

func (p *countingProvider) Elevations(_ context.Context, points []domain.Coordinate) ([]*float64, error) {
	p.calls = append(p.calls, points)
	if p.err != nil {
		return nil, p.err
	}
	return p.values(points), nil
}

func byLatitude(points []domain.Coordinate) []*float64 {
	out := make([]*float64, len(points))
	for i, p := range points {
		v := p.Lat
		out[i] = &v
	}
	return out
}

func TestCachedProvider_ServesRepeatsFromCache(t *testing.T) {
	inner := &countingProvider{values: byLatitude}
	c := NewCachedProvider(inner, time.Minute, observability.NewMetricsForTesting())

	pts := []domain.Coordinate{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}
	first, err := c.Elevations(context.Background(), pts)
	require.NoError(t, err)

	second, err := c.Elevations(context.Background(), append(pts, domain.Coordinate{Lat: 3, Lon: 3}))
	require.NoError(t, err)

	require.Len(t, inner.calls, 2)
	assert.Equal(t, []domain.Coordinate{{Lat: 3, Lon: 3}}, inner.calls[1], "only the new point is fetched")
	assert.Equal(t, first, second[:2])
	assert.InDelta(t, 3, *second[2], 0)
}

func TestCachedProvider_DoesNotCacheGaps(t *testing.T) {
	inner := &countingProvider{values: func(points []domain.Coordinate) []*float64 {
		return make([]*float64, len(points))
	}}
	c := NewCachedProvider(inner, time.Minute, observability.NewMetricsForTesting())

	pts := []domain.Coordinate{{Lat: 1, Lon: 1}}
	for range 2 {
		got, err := c.Elevations(context.Background(), pts)
		require.NoError(t, err)
		assert.Nil(t, got[0])
	}
	assert.Len(t, inner.calls, 2)
}

func TestCachedProvider_PropagatesErrors(t *testing.T) {
	inner := &countingProvider{err: domain.ErrUpstreamUnavailable}
	c := NewCachedProvider(inner, time.Minute, observability.NewMetricsForTesting())

	_, err := c.Elevations(context.Background(), []domain.Coordinate{{Lat: 1, Lon: 1}})
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}
