package report

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet the xlsx sink writes.
const SheetName = "Encodings"

var xlsxHeader = []interface{}{
	"Path", "File encoding", "Stream encoding", "Detector", "Fallback", "Error", "Size", "Modified",
}

// XLSXSink collects records into a workbook and saves it on Close.
type XLSXSink struct {
	path string

	mu   sync.Mutex
	file *excelize.File
	row  int
	err  error
}

// NewXLSXSink prepares a workbook that will be saved at path.
func NewXLSXSink(path string) *XLSXSink {
	f := excelize.NewFile()
	s := &XLSXSink{path: path, file: f, row: 1}

	idx, err := f.NewSheet(SheetName)
	if err != nil {
		s.err = err
		return s
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	if err := f.SetSheetRow(SheetName, "A1", &xlsxHeader); err != nil {
		s.err = err
		return s
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(SheetName, 1, 1, style)
	}
	_ = f.SetColWidth(SheetName, "A", "A", 60)
	_ = f.SetColWidth(SheetName, "B", "D", 16)
	return s
}

func (x *XLSXSink) Name() string { return "xlsx" }

func (x *XLSXSink) Write(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.file == nil {
		return os.ErrClosed
	}
	if x.err != nil {
		return x.err
	}

	x.row++
	var modified interface{} = ""
	if !rec.ModTime.IsZero() {
		modified = rec.ModTime.UTC().Format("2006-01-02 15:04:05")
	}
	row := []interface{}{
		rec.Path, rec.FileEncoding, rec.StreamEncoding, rec.Detector,
		rec.Fallback, rec.Error, rec.Size, modified,
	}
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	if err := x.file.SetSheetRow(SheetName, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", x.row, err)
	}
	return nil
}

// Close saves the workbook.
func (x *XLSXSink) Close(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.file == nil {
		return nil
	}
	defer func() {
		x.file.Close()
		x.file = nil
	}()
	if x.err != nil {
		return x.err
	}
	return x.file.SaveAs(x.path)
}

var _ Sink = (*XLSXSink)(nil)
