package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"git.fiblab.net/sim/epidemic/agent"
	"git.fiblab.net/sim/epidemic/mapdata"
	"github.com/samber/lo"
)

var (
	ErrBadRow       = errors.New("unreadable row")
	ErrMissingField = errors.New("missing column")
)

// quota number marking the default building type
const QUOTA_ALL = "All"

var JOB_COLUMNS = []string{
	"name", "place",
	"minWorkhour", "maxWorkhour",
	"minStartHour", "maxStartHour",
	"minAge", "maxAge",
	"workdays", "populationProportion",
}

// table is a csv file with a header row.
type table struct {
	columns map[string]int
	rows    [][]string
}

func readTable(r io.Reader, required []string) (*table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRow, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrMissingField)
	}
	t := &table{
		columns: lo.SliceToMap(records[0], func(name string) (string, int) {
			return strings.TrimSpace(name), lo.IndexOf(records[0], name)
		}),
	}
	for _, name := range required {
		if _, ok := t.columns[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, name)
		}
	}
	// skip blank lines
	t.rows = lo.Filter(records[1:], func(row []string, _ int) bool {
		return len(row) > 1 || (len(row) == 1 && strings.TrimSpace(row[0]) != "")
	})
	return t, nil
}

// tableRow wraps one record; the first conversion error sticks.
type tableRow struct {
	t   *table
	n   int
	rec []string
	err error
}

func (r *tableRow) str(name string) string {
	i, ok := r.t.columns[name]
	if !ok || i >= len(r.rec) {
		if ok && r.err == nil {
			r.err = fmt.Errorf("%w: row %d: no value for %s", ErrBadRow, r.n, name)
		}
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r *tableRow) integer(name string) int {
	s := r.str(name)
	if r.err != nil {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		r.err = fmt.Errorf("%w: row %d: %s: %v", ErrBadRow, r.n, name, err)
	}
	return v
}

func (r *tableRow) number(name string) float64 {
	s := r.str(name)
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.err = fmt.Errorf("%w: row %d: %s: %v", ErrBadRow, r.n, name, err)
	}
	return v
}

// optionalInt is 0 when the column is absent.
func (r *tableRow) optionalInt(name string) int {
	if _, ok := r.t.columns[name]; !ok {
		return 0
	}
	return r.integer(name)
}

// ParseWorkdays reads a weekday mask, either seven 0/1 characters with day 0
// first or a decimal bitmask with bit i for day i.
func ParseWorkdays(s string) (uint8, error) {
	s = strings.TrimSpace(s)
	if len(s) == agent.DAYS_PER_WEEK && strings.Trim(s, "01") == "" {
		mask := uint8(0)
		for i, c := range s {
			if c == '1' {
				mask |= 1 << i
			}
		}
		return mask, nil
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, err
	}
	if v >= 1<<agent.DAYS_PER_WEEK {
		return 0, fmt.Errorf("mask %d has bits beyond a week", v)
	}
	return uint8(v), nil
}

// ReadJobClasses parses a job table. Rows are numbered from 1, the header excluded.
func ReadJobClasses(r io.Reader) ([]*agent.JobClass, error) {
	t, err := readTable(r, JOB_COLUMNS)
	if err != nil {
		return nil, err
	}
	classes := make([]*agent.JobClass, 0, len(t.rows))
	for i, rec := range t.rows {
		row := &tableRow{t: t, n: i + 1, rec: rec}
		c := &agent.JobClass{
			Name:                 row.str("name"),
			BuildingType:         row.str("place"),
			MinWorkhour:          row.integer("minWorkhour"),
			MaxWorkhour:          row.integer("maxWorkhour"),
			MinStartHour:         row.integer("minStartHour"),
			MaxStartHour:         row.integer("maxStartHour"),
			MinAge:               row.integer("minAge"),
			MaxAge:               row.integer("maxAge"),
			PopulationProportion: row.number("populationProportion"),
			MinActivityPerWeek:   row.optionalInt("minActivityPerWeek"),
			MaxActivityPerWeek:   row.optionalInt("maxActivityPerWeek"),
		}
		if row.err != nil {
			return nil, row.err
		}
		if c.Workdays, err = ParseWorkdays(row.str("workdays")); err != nil {
			return nil, fmt.Errorf("%w: row %d: workdays: %v", ErrBadRow, row.n, err)
		}
		classes = append(classes, c)
	}
	return classes, nil
}

func LoadJobClasses(path string) ([]*agent.JobClass, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open job table: %w", err)
	}
	defer f.Close()
	classes, err := ReadJobClasses(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("loaded %d job classes from %s", len(classes), path)
	return classes, nil
}

// ReadBuildingQuotas parses a type,number table; the number All marks the
// default type.
func ReadBuildingQuotas(r io.Reader) (mapdata.RetagPolicy, error) {
	policy := mapdata.RetagPolicy{}
	t, err := readTable(r, []string{"type", "number"})
	if err != nil {
		return policy, err
	}
	for i, rec := range t.rows {
		row := &tableRow{t: t, n: i + 1, rec: rec}
		typ := row.str("type")
		if row.str("number") == QUOTA_ALL {
			policy.Default = typ
			continue
		}
		n := row.integer("number")
		if row.err != nil {
			return policy, row.err
		}
		policy.Quotas = append(policy.Quotas, mapdata.Quota{Type: typ, Number: n})
	}
	return policy, nil
}

func LoadBuildingQuotas(path string) (mapdata.RetagPolicy, error) {
	f, err := os.Open(path)
	if err != nil {
		return mapdata.RetagPolicy{}, fmt.Errorf("open building table: %w", err)
	}
	defer f.Close()
	policy, err := ReadBuildingQuotas(f)
	if err != nil {
		return policy, fmt.Errorf("%s: %w", path, err)
	}
	return policy, nil
}
