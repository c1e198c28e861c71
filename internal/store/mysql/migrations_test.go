package mysql

import (
	"io/fs"
	"strings"
	"testing"
)

func TestDownMigrationsKeepAuditRows(t *testing.T) {
	downs, err := fs.Glob(migrationFS, "migrations/*.down.sql")
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(downs) == 0 {
		t.Fatal("expected at least one down migration")
	}
	for _, name := range downs {
		body, err := migrationFS.ReadFile(name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		upper := strings.ToUpper(string(body))
		if strings.Contains(upper, "DROP") || strings.Contains(upper, "DELETE") || strings.Contains(upper, "TRUNCATE") {
			t.Errorf("%s must not remove audit data:\n%s", name, body)
		}
	}
}
