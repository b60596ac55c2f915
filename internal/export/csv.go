// Package export writes a user's activity log in portable formats.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jonathan/otj-helper/internal/db"
)

// CSVHeader is the first row of an activity export.
var CSVHeader = []string{"date", "title", "hours", "type", "quality", "ksbs", "tags", "description"}

// WriteActivitiesCSV writes one row per activity. KSB codes and tags are joined
// with ";".
func WriteActivitiesCSV(w io.Writer, activities []db.Activity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for i := range activities {
		a := &activities[i]
		row := []string{
			a.ActivityDate.String(),
			a.Title,
			strconv.FormatFloat(a.DurationHours, 'f', -1, 64),
			string(a.ActivityType),
			string(a.EvidenceQuality.OrDraft()),
			strings.Join(a.KSBCodes(), ";"),
			strings.Join(a.TagNames(), ";"),
			a.Description,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write activity %d: %w", a.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
