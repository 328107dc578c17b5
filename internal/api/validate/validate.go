// Package validate parses and checks request input at the HTTP boundary.
package validate

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/kafadas/kinjo/internal/model"
	"github.com/kafadas/kinjo/internal/trends"
)

// DefaultRange applies when a trends request names neither a range label
// nor explicit dates.
const DefaultRange = "30d"

const (
	maxDescription = 2000
	maxTags        = 20
	maxName        = 80
)

// TrendQuery reads range, start, end, action and significant from q.
func TrendQuery(q url.Values) (trends.Query, error) {
	rs := trends.RangeSpec{
		Label: strings.TrimSpace(q.Get("range")),
		Start: strings.TrimSpace(q.Get("start")),
		End:   strings.TrimSpace(q.Get("end")),
	}
	if rs.Label == "" && rs.Start == "" && rs.End == "" {
		rs.Label = DefaultRange
	}
	out := trends.Query{Range: rs, Action: model.ActionFilter(strings.ToLower(q.Get("action")))}
	if !out.Action.Valid() {
		return trends.Query{}, fmt.Errorf("%w: action must be given, received or both", model.ErrValidation)
	}
	if v := q.Get("significant"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return trends.Query{}, fmt.Errorf("%w: significant must be a boolean", model.ErrValidation)
		}
		out.SignificanceOnly = b
	}
	return out, nil
}

// Period parses a reflection period path segment.
func Period(v string) (model.Period, error) {
	p := model.Period(v)
	if !p.Valid() {
		return "", fmt.Errorf("%w: period must be one of 7d, 30d, 90d, 365d", model.ErrValidation)
	}
	return p, nil
}

func NonEmpty(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s is required", model.ErrValidation, field)
	}
	return nil
}

func MaxLen(field, v string, limit int) error {
	if len(v) > limit {
		return fmt.Errorf("%w: %s exceeds %d bytes", model.ErrValidation, field, limit)
	}
	return nil
}

// Moment checks free-text limits on a moment before it reaches the service.
func Moment(m *model.Moment) error {
	if err := MaxLen("description", m.Description, maxDescription); err != nil {
		return err
	}
	if len(m.Tags) > maxTags {
		return fmt.Errorf("%w: at most %d tags", model.ErrValidation, maxTags)
	}
	for _, t := range m.Tags {
		if err := MaxLen("tag", t, maxName); err != nil {
			return err
		}
	}
	return nil
}

// Name checks a display name or category name.
func Name(field, v string) error {
	if err := NonEmpty(field, v); err != nil {
		return err
	}
	return MaxLen(field, v, maxName)
}
