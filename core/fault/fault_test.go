package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestClassifyMySQL(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"access denied to db", &mysql.MySQLError{Number: 1044, Message: "access denied"}, KindPermission},
		{"bad credentials", &mysql.MySQLError{Number: 1045, Message: "access denied"}, KindPermission},
		{"table denied", &mysql.MySQLError{Number: 1142, Message: "command denied"}, KindPermission},
		{"wrapped driver error", fmt.Errorf("fetch: %w", &mysql.MySQLError{Number: 1045}), KindPermission},
		{"other driver error", &mysql.MySQLError{Number: 1213, Message: "deadlock"}, KindTransient},
		{"context cancellation", context.Canceled, KindTransient},
		{"deadline exceeded", context.DeadlineExceeded, KindTransient},
		{"plain error", errors.New("connection reset"), KindTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyMySQL(tc.err)
			if got == nil || got.Kind != tc.want {
				t.Fatalf("ClassifyMySQL() = %v, want kind %v", got, tc.want)
			}
		})
	}

	if ClassifyMySQL(nil) != nil {
		t.Fatal("nil error must classify to nil")
	}
}

func TestKindOfUnwrapsThroughWrapping(t *testing.T) {
	inner := Newf(KindNotFound, "no row")
	wrapped := fmt.Errorf("fetch profile: %w", inner)
	if got := KindOf(wrapped); got != KindNotFound {
		t.Fatalf("KindOf(wrapped) = %v, want not_found", got)
	}
	if !IsKind(wrapped, KindNotFound) {
		t.Fatal("IsKind failed to unwrap")
	}
	// Unclassified errors default to the retryable kind.
	if got := KindOf(errors.New("weird")); got != KindTransient {
		t.Fatalf("KindOf(plain) = %v, want transient", got)
	}
}
