package repository

import (
	"testing"
)

func TestKeywordFilter(t *testing.T) {
	condition, args := keywordFilter(false, "50%_off", "error_message", " ", "payload")
	if condition != `error_message LIKE ? ESCAPE '\' OR payload LIKE ? ESCAPE '\'` {
		t.Fatalf("unexpected sqlite condition: %s", condition)
	}
	if len(args) != 2 || args[0] != `%50\%\_off%` {
		t.Fatalf("unexpected args: %v", args)
	}

	condition, _ = keywordFilter(true, "x", "payload")
	if condition != `payload ILIKE ? ESCAPE '\'` {
		t.Fatalf("postgres condition should use ILIKE, got %s", condition)
	}
}

func TestSkipLockedClauses(t *testing.T) {
	if clauses := skipLockedClauses(nil); len(clauses) != 0 {
		t.Fatalf("nil db should not add locking clauses, got %d", len(clauses))
	}
	db := openRepositoryTestDB(t, "dialect")
	if isPostgres(db) {
		t.Fatalf("sqlite db detected as postgres")
	}
	if clauses := skipLockedClauses(db); len(clauses) != 0 {
		t.Fatalf("sqlite db should not add locking clauses, got %d", len(clauses))
	}
}

func TestLowerEquals(t *testing.T) {
	if got := lowerEquals("city"); got != "LOWER(city) = LOWER(?)" {
		t.Fatalf("unexpected condition: %s", got)
	}
}
