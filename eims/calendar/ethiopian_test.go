package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromGregorian(t *testing.T) {
	cases := []struct {
		in   time.Time
		want Date
	}{
		{time.Date(2023, 9, 12, 10, 0, 0, 0, time.UTC), Date{2016, 1, 1}},
		{time.Date(2023, 9, 11, 10, 0, 0, 0, time.UTC), Date{2015, 13, 6}},
		{time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC), Date{2016, 4, 28}},
		{time.Date(2024, 9, 11, 0, 0, 0, 0, time.UTC), Date{2017, 1, 1}},
		{time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC), Date{2017, 4, 29}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FromGregorian(c.in), c.in.Format("2006-01-02"))
	}
}

func TestDate_Format(t *testing.T) {
	d := Date{Year: 2016, Month: 4, Day: 28}
	assert.Equal(t, "28/04/16", d.String())
	assert.Equal(t, "28 Tahsas 2016", d.Long())
	assert.Equal(t, "Pagume", Date{Month: 13}.MonthName())
	assert.Equal(t, "", Date{Month: 14}.MonthName())
}
