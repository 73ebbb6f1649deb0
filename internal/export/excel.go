package export

import (
	"fmt"
	"io"
	"strings"

	"roombook/internal/model"
	"roombook/internal/tz"

	"github.com/xuri/excelize/v2"
)

const (
	SheetBookings = "Bookings"
	SheetSeries   = "Series"
)

var weekdayNames = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// sheetWriter appends rows to one sheet at a time.
type sheetWriter struct {
	file  *excelize.File
	sheet string
	row   int
	bold  int
}

func newSheetWriter() (*sheetWriter, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	return &sheetWriter{file: f, bold: bold}, nil
}

func (w *sheetWriter) addSheet(name string, header []string) error {
	if w.sheet == "" {
		// Rename default sheet
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return err
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.sheet = name
	w.row = 1

	if err := w.writeRow(toCells(header)); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	return w.file.SetCellStyle(name, first, last, w.bold)
}

func (w *sheetWriter) writeRow(values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d of %s: %w", w.row, w.sheet, err)
	}
	w.row++
	return nil
}

func toCells(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// WriteRoomSchedule writes a workbook with individual bookings and grouped series
// of one room, times in the zone's wall clock.
func WriteRoomSchedule(out io.Writer, room *model.Room, views []model.View, zone *tz.Zone) error {
	w, err := newSheetWriter()
	if err != nil {
		return err
	}
	defer w.file.Close()

	if err := w.addSheet(SheetBookings, []string{"Date", "Weekday", "Start", "End", "Booked by", "Booking ID"}); err != nil {
		return err
	}
	for _, v := range views {
		if v.Booking == nil {
			continue
		}
		b := v.Booking
		start := zone.ToLocal(b.Start)
		err := w.writeRow([]interface{}{
			start.Date().String(),
			weekdayNames[start.Weekday],
			start.TimeOfDay().String(),
			zone.TimeOfDay(b.End).String(),
			b.DisplayName(),
			b.ID,
		})
		if err != nil {
			return err
		}
	}

	if err := w.addSheet(SheetSeries, []string{"Booked by", "Weekdays", "Start", "End", "First", "Last", "Occurrences", "Source"}); err != nil {
		return err
	}
	for _, v := range views {
		if v.Series == nil {
			continue
		}
		s := v.Series
		source := "stored"
		if s.Inferred {
			source = "inferred"
		}
		err := w.writeRow([]interface{}{
			s.DisplayName(),
			weekdayList(s.Weekdays),
			s.StartTime.String(),
			s.EndTime.String(),
			zone.DateOf(s.RangeStart).String(),
			zone.DateOf(s.RangeEnd).String(),
			s.Count,
			source,
		})
		if err != nil {
			return err
		}
	}

	if idx, err := w.file.GetSheetIndex(SheetBookings); err == nil {
		w.file.SetActiveSheet(idx)
	}
	if err := w.file.SetDocProps(&excelize.DocProperties{Title: room.Name + " schedule", Creator: "roombook"}); err != nil {
		return err
	}
	if err := w.file.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func weekdayList(days []int) string {
	names := make([]string, 0, len(days))
	for _, d := range days {
		if d >= 0 && d < len(weekdayNames) {
			names = append(names, weekdayNames[d])
		}
	}
	return strings.Join(names, ", ")
}
