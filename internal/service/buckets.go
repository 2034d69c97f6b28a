package service

import (
	"strings"
	"time"
)

type GroupBy string

const (
	GroupByDay   GroupBy = "day"
	GroupByWeek  GroupBy = "week"
	GroupByMonth GroupBy = "month"
)

// ParseGroupBy acepta day/week/month; vacío es day.
func ParseGroupBy(raw string) (GroupBy, bool) {
	switch g := GroupBy(strings.ToLower(strings.TrimSpace(raw))); g {
	case "":
		return GroupByDay, true
	case GroupByDay, GroupByWeek, GroupByMonth:
		return g, true
	}
	return "", false
}

// Máximo de buckets por serie: un año diario, cinco años semanales, diez años mensuales.
var maxBuckets = map[GroupBy]int{
	GroupByDay:   366,
	GroupByWeek:  260,
	GroupByMonth: 120,
}

type bucket struct {
	start time.Time
	end   time.Time
	label string
}

// bucketStart alinea t al inicio de su día, semana (lunes) o mes en loc.
func bucketStart(t time.Time, g GroupBy, loc *time.Location) time.Time {
	t = t.In(loc)
	switch g {
	case GroupByWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case GroupByMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func nextBucket(start time.Time, g GroupBy) time.Time {
	switch g {
	case GroupByWeek:
		return start.AddDate(0, 0, 7)
	case GroupByMonth:
		return start.AddDate(0, 1, 0)
	}
	return start.AddDate(0, 0, 1)
}

func bucketLabel(start time.Time, g GroupBy) string {
	if g == GroupByMonth {
		return start.Format("2006-01")
	}
	return start.Format("2006-01-02")
}

// buildBuckets devuelve buckets contiguos que cubren [start, end]; end de cada uno = siguiente inicio - 1ns.
func buildBuckets(start, end time.Time, g GroupBy, loc *time.Location) []bucket {
	var out []bucket
	for s := bucketStart(start, g, loc); !s.After(end); {
		next := nextBucket(s, g)
		out = append(out, bucket{start: s, end: next.Add(-time.Nanosecond), label: bucketLabel(s, g)})
		s = next
	}
	return out
}

// bucketCount calcula cuántos buckets cubren [start, end] sin construirlos.
func bucketCount(start, end time.Time, g GroupBy, loc *time.Location) int {
	first := bucketStart(start, g, loc)
	last := bucketStart(end, g, loc)
	if last.Before(first) {
		return 0
	}
	if g == GroupByMonth {
		return (last.Year()-first.Year())*12 + int(last.Month()-first.Month()) + 1
	}
	y1, m1, d1 := first.Date()
	y2, m2, d2 := last.Date()
	days := int(time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC).Sub(time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)).Hours() / 24)
	if g == GroupByWeek {
		return days/7 + 1
	}
	return days + 1
}
