package openfloor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Span is the time extent of a dialog event or token. Start and end may each
// be given as an absolute timestamp or as an ISO 8601 duration offset
// relative to an enclosing span, but not both.
type Span struct {
	StartTime   *time.Time
	StartOffset *time.Duration
	EndTime     *time.Time
	EndOffset   *time.Duration

	// Extra holds unrecognized wire fields so they survive a round trip.
	Extra *Structure
}

// NewSpan builds a span from absolute timestamps. Either may be nil.
func NewSpan(start, end *time.Time) (*Span, error) {
	s := &Span{StartTime: start, EndTime: end}
	if err := s.validate("span"); err != nil {
		return nil, err
	}
	return s, nil
}

// SpanStartingNow returns a span whose start is the current time.
func SpanStartingNow() *Span {
	now := time.Now()
	return &Span{StartTime: &now}
}

func (s *Span) validate(field string) error {
	if s.StartTime != nil && s.StartOffset != nil {
		return validationErrorf(field, "startTime and startOffset are mutually exclusive")
	}
	if s.EndTime != nil && s.EndOffset != nil {
		return validationErrorf(field, "endTime and endOffset are mutually exclusive")
	}
	if s.StartTime != nil && s.EndTime != nil && s.EndTime.Before(*s.StartTime) {
		return validationErrorf(field, "endTime %s precedes startTime %s",
			s.EndTime.Format(time.RFC3339Nano), s.StartTime.Format(time.RFC3339Nano))
	}
	return nil
}

// ToStructure converts the span to its wire form. Absent fields are omitted.
func (s *Span) ToStructure() *Structure {
	out := NewStructure()
	if s.StartTime != nil {
		out.Set("startTime", s.StartTime.Format(time.RFC3339Nano))
	}
	if s.StartOffset != nil {
		out.Set("startOffset", formatISODuration(*s.StartOffset))
	}
	if s.EndTime != nil {
		out.Set("endTime", s.EndTime.Format(time.RFC3339Nano))
	}
	if s.EndOffset != nil {
		out.Set("endOffset", formatISODuration(*s.EndOffset))
	}
	mergeExtra(out, s.Extra)
	return out
}

// SpanFromStructure decodes a span, failing with a SchemaError on malformed
// timestamps or durations.
func SpanFromStructure(st *Structure) (*Span, error) {
	return spanFromStructure(st, "span")
}

func spanFromStructure(st *Structure, path string) (*Span, error) {
	s := &Span{}
	var err error
	if s.StartTime, err = timestampField(st, path, "startTime"); err != nil {
		return nil, err
	}
	if s.EndTime, err = timestampField(st, path, "endTime"); err != nil {
		return nil, err
	}
	if s.StartOffset, err = durationField(st, path, "startOffset"); err != nil {
		return nil, err
	}
	if s.EndOffset, err = durationField(st, path, "endOffset"); err != nil {
		return nil, err
	}
	if err := s.validate(path); err != nil {
		return nil, err
	}
	s.Extra = restStructure(st, "startTime", "startOffset", "endTime", "endOffset")
	return s, nil
}

// timestampLayouts are tried in order; producers commonly omit fractional
// seconds or the timezone designator.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func timestampField(st *Structure, path, key string) (*time.Time, error) {
	raw, err := optionalString(st, path, key)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, perr := time.Parse(layout, raw); perr == nil {
			return &t, nil
		}
	}
	return nil, schemaErrorf(joinPath(path, key), raw, "malformed ISO 8601 timestamp")
}

func durationField(st *Structure, path, key string) (*time.Duration, error) {
	raw, err := optionalString(st, path, key)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	d, perr := parseISODuration(raw)
	if perr != nil {
		return nil, schemaErrorf(joinPath(path, key), raw, "malformed ISO 8601 duration")
	}
	return &d, nil
}

// parseISODuration parses durations of the form P[nD]T[nH][nM][nS], the
// subset the dialog-event wire format uses.
func parseISODuration(s string) (time.Duration, error) {
	orig := s
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("duration %q does not start with P", orig)
	}
	s = s[1:]
	var days, hours, minutes int64
	var seconds float64
	datePart := s
	timePart := ""
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		datePart, timePart = s[:i], s[i+1:]
	}
	var err error
	if days, datePart, err = isoComponent(datePart, 'D'); err != nil {
		return 0, err
	}
	if datePart != "" {
		return 0, fmt.Errorf("unsupported duration component in %q", orig)
	}
	if hours, timePart, err = isoComponent(timePart, 'H'); err != nil {
		return 0, err
	}
	if minutes, timePart, err = isoComponent(timePart, 'M'); err != nil {
		return 0, err
	}
	if i := strings.IndexByte(timePart, 'S'); i >= 0 {
		if seconds, err = strconv.ParseFloat(timePart[:i], 64); err != nil {
			return 0, fmt.Errorf("bad seconds in duration %q", orig)
		}
		timePart = timePart[i+1:]
	}
	if timePart != "" {
		return 0, fmt.Errorf("trailing garbage in duration %q", orig)
	}
	d := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	return d, nil
}

func isoComponent(s string, unit byte) (int64, string, error) {
	i := strings.IndexByte(s, unit)
	if i < 0 {
		return 0, s, nil
	}
	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("bad %c component in duration", unit)
	}
	return n, s[i+1:], nil
}

// formatISODuration renders a duration as PT[nH][nM][nS].
func formatISODuration(d time.Duration) string {
	total := int64(d / time.Second)
	nanos := int64(d % time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	var b strings.Builder
	b.WriteString("PT")
	if hours > 0 {
		fmt.Fprintf(&b, "%dH", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%dM", minutes)
	}
	if nanos != 0 {
		fmt.Fprintf(&b, "%sS", strconv.FormatFloat(float64(seconds)+float64(nanos)/1e9, 'f', -1, 64))
	} else if seconds > 0 || (hours == 0 && minutes == 0) {
		fmt.Fprintf(&b, "%dS", seconds)
	}
	return b.String()
}
