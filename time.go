package saml

import (
	"encoding/xml"
	"time"

	"github.com/jonboulle/clockwork"
)

// clockwork.Clock is the injectable time source spec §5 requires for every
// temporal check (Conditions window, SubjectConfirmationData, NotOnOrAfter
// on logout messages). Settings defaults to clockwork.NewRealClock().

// timeFormat is the SAML xs:dateTime wire format: UTC, second precision,
// trailing "Z".
const timeFormat = "2006-01-02T15:04:05Z"

// timeFormatMillis is used when a nonzero sub-second component is present.
const timeFormatMillis = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond() == 0 {
		return t.Format(timeFormat)
	}
	return t.Format(timeFormatMillis)
}

// RelaxedTime parses the handful of variant xs:dateTime spellings IdPs are
// known to emit (missing "Z", fractional seconds of varying width, a
// trailing numeric offset) in addition to the canonical form.
type RelaxedTime time.Time

var relaxedTimeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseRelaxedTime(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range relaxedTimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		} else if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func (r *RelaxedTime) UnmarshalXMLAttr(attr xml.Attr) error {
	if attr.Value == "" {
		*r = RelaxedTime(time.Time{})
		return nil
	}
	t, err := parseRelaxedTime(attr.Value)
	if err != nil {
		return err
	}
	*r = RelaxedTime(t)
	return nil
}

// MarshalXMLAttr omits the attribute entirely for a zero value: encoding/xml
// only drops an attribute whose Name is the zero xml.Name, not merely one
// with an empty Value, so a populated Name here would marshal as a spurious
// Attr="" rather than being left out.
func (r RelaxedTime) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	t := time.Time(r)
	if t.IsZero() {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: formatTime(t)}, nil
}
