// Package calendar converts Gregorian dates to the Ethiopian calendar
// printed on receipts.
package calendar

import (
	"fmt"
	"time"
)

// epoch is the Julian day number of 1 Meskerem, year 1.
const epoch = 1724221

var monthNames = [13]string{
	"Meskerem", "Tikimt", "Hidar", "Tahsas", "Tir", "Yekatit",
	"Megabit", "Miazia", "Ginbot", "Sene", "Hamle", "Nehase", "Pagume",
}

// Date is a day of the Ethiopian calendar. Months 1-12 have 30 days,
// month 13 (Pagume) 5 or 6.
type Date struct {
	Year  int
	Month int
	Day   int
}

func FromGregorian(t time.Time) Date {
	jdn := julianDay(t.Year(), int(t.Month()), t.Day())
	days := jdn - epoch
	year := (4*days + 1463) / 1461
	first := epoch + 365*(year-1) + year/4
	doy := jdn - first
	return Date{Year: year, Month: doy/30 + 1, Day: doy%30 + 1}
}

func julianDay(y, m, d int) int {
	a := (14 - m) / 12
	y = y + 4800 - a
	m = m + 12*a - 3
	return d + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
}

func (d Date) MonthName() string {
	if d.Month < 1 || d.Month > 13 {
		return ""
	}
	return monthNames[d.Month-1]
}

// String formats the date as dd/mm/yy.
func (d Date) String() string {
	return fmt.Sprintf("%02d/%02d/%02d", d.Day, d.Month, d.Year%100)
}

// Long formats the date as "29 Tahsas 2016".
func (d Date) Long() string {
	return fmt.Sprintf("%d %s %d", d.Day, d.MonthName(), d.Year)
}
