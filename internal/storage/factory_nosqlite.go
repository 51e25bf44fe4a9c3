//go:build !sqlite

package storage

import "fmt"

func newSQLiteHistoryStore(_ string) (HistoryStore, error) {
	return nil, fmt.Errorf("storage: sqlite backend unavailable in this build; rebuild with -tags sqlite")
}
