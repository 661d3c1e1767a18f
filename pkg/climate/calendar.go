package climate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"acao/entities"
)

// Calendar holds Kc stage tables per crop, as loaded from a crop calendar sheet.
type Calendar struct {
	stages map[string][]entities.CropStage
}

func NewCalendar() *Calendar {
	return &Calendar{stages: map[string][]entities.CropStage{}}
}

// LoadCalendar reads a crop calendar from a .csv or .xlsx file. Required columns are
// crop, stage, days, kc_start and kc_end; ord is optional and defaults to row order.
func LoadCalendar(path string) (*Calendar, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadCalendarCSV(f)
	case ".xlsx", ".xlsm":
		x, err := excelize.OpenFile(path)
		if err != nil {
			return nil, err
		}
		defer x.Close()
		return readCalendarXLSX(x)
	}
	return nil, fmt.Errorf("crop calendar %s: unsupported extension", path)
}

func ReadCalendarCSV(r io.Reader) (*Calendar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("crop calendar header: %w", err)
	}
	cols, err := mapColumns(head)
	if err != nil {
		return nil, err
	}
	cal := NewCalendar()
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if err := cal.addRow(cols, rec, line); err != nil {
			return nil, err
		}
	}
	return cal.finish()
}

// ReadCalendarXLSX reads the first sheet of a workbook, or the sheet named "calendar"
// when present.
func ReadCalendarXLSX(r io.Reader) (*Calendar, error) {
	x, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer x.Close()
	return readCalendarXLSX(x)
}

func readCalendarXLSX(x *excelize.File) (*Calendar, error) {
	sheets := x.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("crop calendar workbook has no sheets")
	}
	sheet := sheets[0]
	for _, s := range sheets {
		if strings.EqualFold(s, "calendar") {
			sheet = s
		}
	}
	rows, err := x.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("crop calendar sheet %q is empty", sheet)
	}
	cols, err := mapColumns(rows[0])
	if err != nil {
		return nil, err
	}
	cal := NewCalendar()
	for i, rec := range rows[1:] {
		if err := cal.addRow(cols, rec, i+2); err != nil {
			return nil, err
		}
	}
	return cal.finish()
}

type columns struct {
	crop, ord, stage, days, kcStart, kcEnd int
}

func normHeader(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.ToLower(s)
	for _, cut := range []string{" ", "-", "_"} {
		s = strings.ReplaceAll(s, cut, "")
	}
	return s
}

func mapColumns(head []string) (columns, error) {
	hmap := map[string]int{}
	for i, h := range head {
		hmap[normHeader(h)] = i
	}
	findAny := func(keys ...string) int {
		for _, k := range keys {
			if idx, ok := hmap[normHeader(k)]; ok {
				return idx
			}
		}
		return -1
	}
	c := columns{
		crop:    findAny("crop_id", "crop", "cropcode"),
		ord:     findAny("ord", "order", "seq"),
		stage:   findAny("stage", "phase"),
		days:    findAny("days", "duration", "stage_days"),
		kcStart: findAny("kc_start", "kc_ini", "kc1"),
		kcEnd:   findAny("kc_end", "kc2"),
	}
	if c.crop == -1 || c.stage == -1 || c.days == -1 || c.kcStart == -1 {
		return c, fmt.Errorf("crop calendar missing required columns; found %v, need crop, stage, days, kc_start", head)
	}
	return c, nil
}

func (cal *Calendar) addRow(c columns, rec []string, line int) error {
	get := func(idx int) string {
		if idx < 0 || idx >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[idx])
	}
	cropID := get(c.crop)
	if cropID == "" {
		return nil
	}
	days, err := strconv.Atoi(get(c.days))
	if err != nil || days <= 0 {
		return fmt.Errorf("crop calendar line %d: invalid days %q", line, get(c.days))
	}
	kcStart, err := strconv.ParseFloat(get(c.kcStart), 64)
	if err != nil || kcStart < 0 {
		return fmt.Errorf("crop calendar line %d: invalid kc_start %q", line, get(c.kcStart))
	}
	kcEnd := kcStart
	if v := get(c.kcEnd); v != "" {
		if kcEnd, err = strconv.ParseFloat(v, 64); err != nil || kcEnd < 0 {
			return fmt.Errorf("crop calendar line %d: invalid kc_end %q", line, v)
		}
	}
	ord := len(cal.stages[cropID])
	if v := get(c.ord); v != "" {
		if ord, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("crop calendar line %d: invalid ord %q", line, v)
		}
	}
	cal.stages[cropID] = append(cal.stages[cropID], entities.CropStage{
		CropID:  cropID,
		Ord:     ord,
		Name:    get(c.stage),
		Days:    days,
		KcStart: kcStart,
		KcEnd:   kcEnd,
	})
	return nil
}

func (cal *Calendar) finish() (*Calendar, error) {
	if len(cal.stages) == 0 {
		return nil, errors.New("crop calendar has no stages")
	}
	for _, st := range cal.stages {
		sort.SliceStable(st, func(i, j int) bool { return st[i].Ord < st[j].Ord })
	}
	return cal, nil
}

// Stages returns a copy of the stage table of one crop.
func (cal *Calendar) Stages(cropID string) []entities.CropStage {
	st := cal.stages[cropID]
	out := make([]entities.CropStage, len(st))
	copy(out, st)
	return out
}

func (cal *Calendar) CropIDs() []string {
	ids := make([]string, 0, len(cal.stages))
	for id := range cal.stages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Apply replaces the stage table of every crop the calendar knows and returns the ids
// of crops it left untouched.
func (cal *Calendar) Apply(crops []entities.Crop) []string {
	var missing []string
	for i := range crops {
		st, ok := cal.stages[crops[i].CropID]
		if !ok {
			missing = append(missing, crops[i].CropID)
			continue
		}
		crops[i].Stages = append([]entities.CropStage(nil), st...)
	}
	return missing
}
