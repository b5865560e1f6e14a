package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestSQLiteErrorClassification(t *testing.T) {
	busy := errors.New("SQLITE_BUSY: database table is locked")
	locked := fmt.Errorf("exec: %w", errors.New("database is locked (5)"))
	other := errors.New("no such table: sessions")

	if !IsSQLiteBusyError(busy) || IsSQLiteBusyError(locked) || IsSQLiteBusyError(other) {
		t.Error("IsSQLiteBusyError misclassified")
	}
	if !IsSQLiteLockedError(locked) || IsSQLiteLockedError(busy) || IsSQLiteLockedError(other) {
		t.Error("IsSQLiteLockedError misclassified")
	}
	if !IsSQLiteConflictError(busy) || !IsSQLiteConflictError(locked) || IsSQLiteConflictError(other) {
		t.Error("IsSQLiteConflictError misclassified")
	}
	if IsSQLiteBusyError(nil) || IsSQLiteLockedError(nil) || IsSQLiteConflictError(nil) {
		t.Error("nil error classified as conflict")
	}
}
