// Package dbtest provisions throwaway Postgres schemas for tests that need a
// real server.
package dbtest

import (
	"load-tracking-service/internal/platform/db"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// EnvURL names the variable holding the Postgres server used by tests.
const EnvURL = "DATABASE_URL"

// PostgresURL returns a connection URL whose search_path is a fresh schema,
// dropped when the test ends. The test is skipped when DATABASE_URL is unset.
func PostgresURL(t testing.TB) string {
	t.Helper()

	base := os.Getenv(EnvURL)
	if base == "" {
		t.Skipf("%s not set, skipping Postgres test", EnvURL)
	}

	u, err := url.Parse(base)
	require.NoError(t, err, "%s must be a postgres:// URL", EnvURL)

	admin, err := db.Open(base)
	require.NoError(t, err)

	schema := "lts_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.Exec(`CREATE SCHEMA ` + schema)
	if err != nil {
		_ = admin.Close()
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		_, _ = admin.Exec(`DROP SCHEMA IF EXISTS ` + schema + ` CASCADE`)
		_ = admin.Close()
	})

	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String()
}
