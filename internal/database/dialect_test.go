package database

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"kiwilearn/internal/config"
)

func TestDialectSQLite(t *testing.T) {
	dialect := NewSQLiteDialect()

	t.Run("DriverName", func(t *testing.T) {
		if got := dialect.DriverName(); got != "sqlite3" {
			t.Errorf("DriverName() = %v, want %v", got, "sqlite3")
		}
	})

	t.Run("DSN", func(t *testing.T) {
		got, err := dialect.DSN(DialectConfig{Path: "./kiwi.db"})
		if err != nil {
			t.Fatalf("DSN() error = %v", err)
		}
		if !strings.HasPrefix(got, "file:./kiwi.db?") {
			t.Errorf("DSN() = %v, want file: prefix", got)
		}
		for _, param := range []string{"_txlock=immediate", "_foreign_keys=on", "_busy_timeout=5000"} {
			if !strings.Contains(got, param) {
				t.Errorf("DSN() = %v, missing %s", got, param)
			}
		}
	})

	t.Run("DSN keeps existing query", func(t *testing.T) {
		got, _ := dialect.DSN(DialectConfig{Path: "file:kiwi.db?cache=shared"})
		if !strings.HasPrefix(got, "file:kiwi.db?cache=shared&") {
			t.Errorf("DSN() = %v", got)
		}
	})

	t.Run("DSN requires path", func(t *testing.T) {
		if _, err := dialect.DSN(DialectConfig{}); err == nil {
			t.Error("DSN() with empty path should fail")
		}
	})

	t.Run("LockClause", func(t *testing.T) {
		if got := dialect.LockClause(); got != "" {
			t.Errorf("LockClause() = %q, want empty", got)
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		if got := dialect.MigrationsSubdir(); got != "sqlite" {
			t.Errorf("MigrationsSubdir() = %v, want %v", got, "sqlite")
		}
	})
}

func TestDialectPostgreSQL(t *testing.T) {
	dialect := NewPostgresDialect()

	t.Run("DriverName", func(t *testing.T) {
		if got := dialect.DriverName(); got != "postgres" {
			t.Errorf("DriverName() = %v, want %v", got, "postgres")
		}
	})

	t.Run("LockClause", func(t *testing.T) {
		if got := dialect.LockClause(); got != " FOR UPDATE" {
			t.Errorf("LockClause() = %q, want FOR UPDATE", got)
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		if got := dialect.MigrationsSubdir(); got != "postgres" {
			t.Errorf("MigrationsSubdir() = %v, want %v", got, "postgres")
		}
	})
}

func TestDialectMySQL(t *testing.T) {
	dialect := NewMySQLDialect()

	t.Run("DriverName", func(t *testing.T) {
		if got := dialect.DriverName(); got != "mysql" {
			t.Errorf("DriverName() = %v, want %v", got, "mysql")
		}
	})

	t.Run("DSN sets parseTime and clientFoundRows", func(t *testing.T) {
		got, err := dialect.DSN(DialectConfig{URL: "kiwi:secret@tcp(localhost:3306)/kiwilearn"})
		if err != nil {
			t.Fatalf("DSN() error = %v", err)
		}
		if !strings.Contains(got, "parseTime=true") {
			t.Errorf("DSN() = %v, missing parseTime", got)
		}
		if !strings.Contains(got, "clientFoundRows=true") {
			t.Errorf("DSN() = %v, missing clientFoundRows", got)
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		if got := dialect.MigrationsSubdir(); got != "mysql" {
			t.Errorf("MigrationsSubdir() = %v, want %v", got, "mysql")
		}
	})
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT * FROM users WHERE id = ?",
			expected: "SELECT * FROM users WHERE id = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM users WHERE id = ?",
			expected: "SELECT * FROM users WHERE id = $1",
		},
		{
			name:     "PostgreSQL conditional debit",
			dialect:  NewPostgresDialect(),
			query:    "UPDATE users SET total_points = total_points - ? WHERE id = ? AND total_points >= ?",
			expected: "UPDATE users SET total_points = total_points - $1 WHERE id = $2 AND total_points >= $3",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE pets SET name = ? WHERE user_id = ?",
			expected: "UPDATE pets SET name = ? WHERE user_id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.RewriteQuery(tt.query); got != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		err     error
		want    bool
	}{
		{"sqlite unique", NewSQLiteDialect(), sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, true},
		{"sqlite primary key", NewSQLiteDialect(), sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, true},
		{"sqlite foreign key", NewSQLiteDialect(), sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, false},
		{"postgres unique", NewPostgresDialect(), &pq.Error{Code: "23505"}, true},
		{"postgres wrapped", NewPostgresDialect(), fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), true},
		{"postgres check", NewPostgresDialect(), &pq.Error{Code: "23514"}, false},
		{"mysql duplicate", NewMySQLDialect(), &mysql.MySQLError{Number: 1062}, true},
		{"mysql other", NewMySQLDialect(), &mysql.MySQLError{Number: 1452}, false},
		{"plain error", NewSQLiteDialect(), errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		dbType  string
		driver  string
		wantErr bool
	}{
		{"", "sqlite3", false},
		{"sqlite", "sqlite3", false},
		{"PostgreSQL", "postgres", false},
		{"mysql", "mysql", false},
		{"mongodb", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			dialect, _, err := DialectFor(&config.Config{DatabaseType: tt.dbType})
			if (err != nil) != tt.wantErr {
				t.Fatalf("DialectFor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && dialect.DriverName() != tt.driver {
				t.Errorf("DriverName() = %v, want %v", dialect.DriverName(), tt.driver)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	script := `
-- users
CREATE TABLE a (id TEXT);

CREATE INDEX idx_a ON a(id);
;
`
	got := SplitStatements(script)
	if len(got) != 2 {
		t.Fatalf("SplitStatements() returned %d statements, want 2: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (id TEXT)" {
		t.Errorf("first statement = %q", got[0])
	}
}
