package audit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ViolationKind identifies which ordering constraint a record broke.
type ViolationKind string

const (
	CollectedAfterReceived ViolationKind = "collection>receipt"
	ReceivedAfterResulted  ViolationKind = "receipt>result"
	CollectedAfterResulted ViolationKind = "collection>result"
)

// Label is the human-readable heading used in reports.
func (k ViolationKind) Label() string {
	switch k {
	case CollectedAfterReceived:
		return "SpecCollectDate Error (w/Receive Date)"
	case ReceivedAfterResulted:
		return "SpecReceiveDate Error (w/Result Date)"
	case CollectedAfterResulted:
		return "SpecCollectDate Error (w/Result Date)"
	}
	return string(k)
}

// DateOrderViolation is one broken constraint of
// collection <= receipt <= result for one record.
type DateOrderViolation struct {
	ResultText string        `json:"result_text"`
	Accession  string        `json:"accession"`
	Kind       ViolationKind `json:"kind"`
	Detail     string        `json:"detail"`
}

type datePair struct {
	kind        ViolationKind
	left, right func(Columns) string
}

var datePairs = []datePair{
	{CollectedAfterReceived, func(c Columns) string { return c.Collected }, func(c Columns) string { return c.Received }},
	{ReceivedAfterResulted, func(c Columns) string { return c.Received }, func(c Columns) string { return c.Resulted }},
	{CollectedAfterResulted, func(c Columns) string { return c.Collected }, func(c Columns) string { return c.Resulted }},
}

// DateOrderReport is the outcome of a date-order check.
type DateOrderReport struct {
	Violations []DateOrderViolation
	// Unreadable counts comparisons skipped because an operand held a value
	// that could not be read as a date. Blank operands are not counted.
	Unreadable int
}

// ValidateDateOrder runs three independent comparisons per record and
// returns violations in record-then-comparison order. A comparison with a
// missing or unparseable operand is skipped.
func (a *Auditor) ValidateDateOrder(joined []Record) []DateOrderViolation {
	return a.CheckDateOrder(joined).Violations
}

// CheckDateOrder is ValidateDateOrder that also counts comparisons lost to
// unreadable dates.
func (a *Auditor) CheckDateOrder(joined []Record) DateOrderReport {
	var rep DateOrderReport
	layouts := a.layouts()
	for _, r := range joined {
		parsed := map[string]time.Time{}
		ok := map[string]bool{}
		for _, col := range []string{a.Columns.Collected, a.Columns.Received, a.Columns.Resulted} {
			parsed[col], ok[col] = ParseDate(r[col], layouts)
		}
		for _, p := range datePairs {
			lc, rc := p.left(a.Columns), p.right(a.Columns)
			if !ok[lc] || !ok[rc] {
				if (!ok[lc] && !IsMissing(r[lc])) || (!ok[rc] && !IsMissing(r[rc])) {
					rep.Unreadable++
				}
				continue
			}
			if !parsed[lc].After(parsed[rc]) {
				continue
			}
			rep.Violations = append(rep.Violations, DateOrderViolation{
				ResultText: Category(r[a.Columns.ResultText]),
				Accession:  Category(r[a.Columns.Accession]),
				Kind:       p.kind,
				Detail:     fmt.Sprintf("%s: %s > %s", p.kind.Label(), dateText(r[lc], parsed[lc]), dateText(r[rc], parsed[rc])),
			})
		}
	}
	return rep
}

// dateText renders an operand as it appeared, except spreadsheet serials,
// which are shown as the date they stand for.
func dateText(raw any, t time.Time) string {
	switch x := raw.(type) {
	case float64, float32:
		return formatDate(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil && f <= maxExcelSerial {
			return formatDate(t)
		}
	}
	return Category(raw)
}
