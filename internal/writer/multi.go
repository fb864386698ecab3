// internal/writer/multi.go
package writer

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/tamzrod/nicplane/internal/status"
)

// Multi delivers every snapshot to each writer in order.
// A failing writer does not stop delivery to the others.
type Multi []StatusWriter

func (m Multi) WriteStatus(s status.Snapshot) error {
	var errs []string
	for _, w := range m {
		if err := w.WriteStatus(s); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}
	return nil
}
