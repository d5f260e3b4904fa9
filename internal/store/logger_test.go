package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"codecollab/internal/models"
)

type captureWriter struct {
	mu    sync.Mutex
	lines []string
}

func (w *captureWriter) Printf(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func (w *captureWriter) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = nil
}

func (w *captureWriter) output() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.lines...)
}

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	w := &captureWriter{}
	st, err := open(sqlite.Open("file:gorm_logger?mode=memory&cache=shared"), newGormLogger(w))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	w.reset()
	ctx := context.Background()

	_, err = st.GetActiveSession(ctx, "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = st.GetSession(ctx, "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
	assert.Empty(t, w.output(), "expected misses to stay quiet")

	require.NoError(t, st.DB.Migrator().DropTable(&models.Session{}))
	_, err = st.GetActiveSession(ctx, "missing")
	require.Error(t, err)
	assert.NotEmpty(t, w.output(), "real query errors are still logged")
}
