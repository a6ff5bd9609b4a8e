package fidelity

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
	_ "time/tzdata"
)

// fidelityZone is the fixed zone Fidelity interprets calendar days in.
var fidelityZone = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// FidelityDate converts a calendar day to epoch seconds at midnight
// America/New_York, rendered as the decimal string the Fidelity API
// expects. The calendar date is read from d's UTC fields.
func FidelityDate(d time.Time) string {
	utc := d.UTC()
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, fidelityZone)
	return strconv.FormatInt(midnight.Unix(), 10)
}

// EncodeAccountName encodes a plain-text account name the way the
// get-transactions request body expects it.
func EncodeAccountName(name string) string {
	return base64.StdEncoding.EncodeToString([]byte(name))
}

// checkDayBoundary rejects day values that carry a time of day. A calendar
// day must sit at exact midnight UTC.
func checkDayBoundary(label string, d time.Time) error {
	utc := d.UTC()
	offset := time.Duration(utc.Hour())*time.Hour +
		time.Duration(utc.Minute())*time.Minute +
		time.Duration(utc.Second())*time.Second +
		time.Duration(utc.Nanosecond())
	if offset == 0 {
		return nil
	}
	return fmt.Errorf("%s %s is %.2f hours past midnight UTC", label, utc.Format(time.RFC3339), offset.Hours())
}

// utcDay truncates d to midnight UTC of its own calendar date.
func utcDay(d time.Time) time.Time {
	utc := d.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
