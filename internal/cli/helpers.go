package cli

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/offer-goat/offer-goat/internal/store"
)

// withStore opens the database, executes the function, and handles cleanup.
func withStore(fn func(*store.SQLiteStore) error) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return eris.Wrap(err, "failed to open database")
	}
	defer s.Close()

	return fn(s)
}

// experimentNotFound turns store.ErrNotFound into a message naming the
// experiment and wraps anything else.
func experimentNotFound(err error, name string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("experiment '%s' not found", name)
	}
	return eris.Wrapf(err, "failed to get experiment %s", name)
}

func formatPercent(rate float64) string {
	if rate == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", rate*100)
}
