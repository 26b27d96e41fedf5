package rules

import "time"

type SunSign struct {
	Name    string
	Element string
}

// signStarts lists the first day of each sign in calendar order. Dates before
// January 20 fall through to capricorn.
var signStarts = []struct {
	month time.Month
	day   int
	sign  SunSign
}{
	{time.January, 20, SunSign{Name: "aquarius", Element: "air"}},
	{time.February, 19, SunSign{Name: "pisces", Element: "water"}},
	{time.March, 21, SunSign{Name: "aries", Element: "fire"}},
	{time.April, 20, SunSign{Name: "taurus", Element: "earth"}},
	{time.May, 21, SunSign{Name: "gemini", Element: "air"}},
	{time.June, 21, SunSign{Name: "cancer", Element: "water"}},
	{time.July, 23, SunSign{Name: "leo", Element: "fire"}},
	{time.August, 23, SunSign{Name: "virgo", Element: "earth"}},
	{time.September, 23, SunSign{Name: "libra", Element: "air"}},
	{time.October, 23, SunSign{Name: "scorpio", Element: "water"}},
	{time.November, 22, SunSign{Name: "sagittarius", Element: "fire"}},
	{time.December, 22, SunSign{Name: "capricorn", Element: "earth"}},
}

// SunSignFor returns the western sun sign for a birth date. The zero date
// yields the zero SunSign.
func SunSignFor(d time.Time) SunSign {
	if d.IsZero() {
		return SunSign{}
	}

	m := d.UTC().Month()
	day := d.UTC().Day()

	current := signStarts[len(signStarts)-1].sign
	for _, start := range signStarts {
		if m > start.month || (m == start.month && day >= start.day) {
			current = start.sign
		}
	}
	return current
}
