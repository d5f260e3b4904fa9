package testhelpers

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	"codecollab/internal/models"
	"codecollab/internal/store"
)

var openStore = func(dsn string) (*store.Store, error) { return store.Open("sqlite", dsn) }

// SetupTestStore creates an isolated in-memory SQLite store for tests.
func SetupTestStore(t *testing.T) *store.Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	st, err := openStore(dsn)
	if err != nil {
		panic(fmt.Sprintf("failed to open test database: %v", err))
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// DropSessionTable removes the sessions table to force store errors.
func DropSessionTable(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Migrator().DropTable(&models.Session{}, &models.ChatMessage{}); err != nil {
		panic(fmt.Sprintf("failed to drop session tables: %v", err))
	}
}
