// Package export renders attendance events for payroll spreadsheets.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"time"

	"timeclock/internal/timeclock/models"
)

// Header is the first line of every export.
const Header = "eventId,employeeName,employeeBusinessId,type,timestamp,synced,biometric,hasSelfie"

// WriteCSV writes one row per event in document order. The employee name is
// wrapped in double quotes and no other field is escaped. Events whose
// employee no longer exists are exported with an empty name and code.
func WriteCSV(w io.Writer, doc *models.Document) error {
	byID := make(map[string]models.Employee, len(doc.Employees))
	for _, emp := range doc.Employees {
		byID[emp.ID] = emp
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Header); err != nil {
		return err
	}
	for _, ev := range doc.Events {
		emp := byID[ev.EmployeeRef]
		_, err := fmt.Fprintf(bw, "\n%s,\"%s\",%s,%s,%s,%s,%s,%s",
			ev.ID,
			emp.FullName(),
			emp.EmployeeID,
			ev.Type,
			ev.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatBool(ev.Synced),
			ev.Evidence.Presence,
			strconv.FormatBool(ev.HasImage()),
		)
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Filename is the suggested download name for an export taken at now.
func Filename(now time.Time) string {
	return "timeclock-events-" + now.UTC().Format("20060102-150405") + ".csv"
}
