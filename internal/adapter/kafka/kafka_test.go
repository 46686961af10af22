package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/pivot-coverage-service/internal/domain"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testReport() domain.CoverageReport {
	return domain.CoverageReport{
		StudyID:    "6f1c3f1e-4d7b-4b8e-9a59-3d1f0f4e7a10",
		Role:       domain.RoleRepeater,
		TemplateID: "Brazil_V6",
		Covered:    1,
		Outside:    1,
		Pivots: []domain.Pivot{
			domain.Pivot{Name: "Pivô 1", Lat: -21.5, Lon: -47.1}.WithOutside(false),
			domain.Pivot{Name: "Pivô 2", Lat: -21.6, Lon: -47.2}.WithOutside(true),
		},
		GeneratedAt: time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	report := testReport()

	msg, err := serializeToMessage(report)
	require.NoError(t, err)

	assert.Equal(t, []byte(report.StudyID), msg.Key)
	assert.Contains(t, string(msg.Value), `"role":"repeater"`)
	assert.Contains(t, string(msg.Value), `"covered":1`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "role", msg.Headers[0].Key)
	assert.Equal(t, []byte("repeater"), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2025-05-01T09:30:00Z"), msg.Headers[1].Value)
}

func TestWriter_Publish(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	require.NoError(t, w.Publish(context.Background(), testReport()))
	require.Len(t, fw.msgs, 1)
	assert.Equal(t, "6f1c3f1e-4d7b-4b8e-9a59-3d1f0f4e7a10", string(fw.msgs[0].Key))

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}

func TestWriter_PublishError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	w := &Writer{writer: fw, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	err := w.Publish(context.Background(), testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
