package reports

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/estate-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/estate-ledger/internal/shared"
)

// DateLayout is the query date format.
const DateLayout = "2006-01-02"

// ErrInvalidPeriod is returned for malformed period parameters.
var ErrInvalidPeriod = shared.NewError(shared.ErrValidation, "reports: period must be YYYY, YYYY-MM or YYYY-Qn")

// Range is a reporting window. Periods lists the canonical months covered when
// the window came from a period parameter; it is empty for custom date ranges.
type Range struct {
	Label   string          `json:"label"`
	From    time.Time       `json:"from"`
	To      time.Time       `json:"to"`
	Periods []ledger.Period `json:"-"`
}

// ParsePeriod accepts YYYY, YYYY-MM or YYYY-Qn. An empty value selects the
// month containing now.
func ParsePeriod(raw string, now time.Time) (Range, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		raw = now.Format("2006-01")
	}
	parts := strings.Split(raw, "-")
	year, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 || len(parts) > 2 {
		return Range{}, ErrInvalidPeriod
	}
	first, last := 1, 12
	if len(parts) == 2 {
		seg := parts[1]
		if strings.HasPrefix(seg, "Q") {
			q, err := strconv.Atoi(seg[1:])
			if err != nil || q < 1 || q > 4 {
				return Range{}, ErrInvalidPeriod
			}
			first, last = (q-1)*3+1, q*3
		} else {
			m, err := strconv.Atoi(seg)
			if err != nil || m < 1 || m > 12 || len(seg) != 2 {
				return Range{}, ErrInvalidPeriod
			}
			first, last = m, m
		}
	}
	rng := Range{
		Label: raw,
		From:  time.Date(year, time.Month(first), 1, 0, 0, 0, 0, time.UTC),
		To:    time.Date(year, time.Month(last)+1, 0, 0, 0, 0, 0, time.UTC),
	}
	for m := first; m <= last; m++ {
		rng.Periods = append(rng.Periods, ledger.Period{Year: year, Month: m})
	}
	return rng, nil
}

// CustomRange builds a window from explicit dates.
func CustomRange(from, to time.Time) (Range, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return Range{}, shared.FieldErrors{"endDate": "must not be before startDate"}
	}
	return Range{Label: fmt.Sprintf("%s..%s", from.Format(DateLayout), to.Format(DateLayout)), From: from, To: to}, nil
}

// ParseDate parses a YYYY-MM-DD query value; empty yields fallback.
func ParseDate(field, raw string, fallback time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, shared.FieldErrors{field: "must be YYYY-MM-DD"}
	}
	return t, nil
}

// Months lists the YYYY-MM keys from From through To.
func (r Range) Months() []string {
	if len(r.Periods) > 0 {
		out := make([]string, len(r.Periods))
		for i, p := range r.Periods {
			out[i] = p.String()
		}
		return out
	}
	var out []string
	cur := time.Date(r.From.Year(), r.From.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(r.To) {
		out = append(out, cur.Format("2006-01"))
		cur = cur.AddDate(0, 1, 0)
	}
	return out
}

// Filter converts the window into a ledger statement filter.
func (r Range) Filter() ledger.StatementFilter {
	if len(r.Periods) > 0 {
		return ledger.StatementFilter{Periods: r.Periods}
	}
	return ledger.StatementFilter{From: r.From, To: r.To}
}

func monthKey(e ledger.Entry) string {
	if e.Period.Valid() {
		return e.Period.String()
	}
	return e.Date.Format("2006-01")
}
