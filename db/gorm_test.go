package db

import (
	"strings"
	"testing"

	"EmberFM/config"
)

func TestGormDSNReportsMatchedRows(t *testing.T) {
	cfg := &config.Config{
		DBUser:     "ember",
		DBPassword: "secret",
		DBHost:     "127.0.0.1",
		DBPort:     "3306",
		DBName:     "emberfm",
	}

	dsn := gormDSN(cfg)
	if !strings.HasPrefix(dsn, "ember:secret@tcp(127.0.0.1:3306)/emberfm?") {
		t.Fatalf("dsn = %q", dsn)
	}
	// Without this flag MySQL reports changed rows, and a patch that
	// rewrites values already present looks like a missing row.
	if !strings.Contains(dsn, "clientFoundRows=true") {
		t.Fatalf("dsn missing clientFoundRows=true: %q", dsn)
	}
	if !strings.Contains(dsn, "parseTime=True") {
		t.Fatalf("dsn missing parseTime: %q", dsn)
	}
}
