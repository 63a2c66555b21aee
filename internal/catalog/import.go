package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mwangi/pharmos/internal/model"
	"github.com/mwangi/pharmos/internal/notify"
)

// RowError records why a single CSV row was skipped.
type RowError struct {
	Line int
	Err  error
}

// ImportReport summarizes a CSV import run.
type ImportReport struct {
	Imported int
	Skipped  int
	Errors   []RowError
}

// importColumns is the required CSV header, in order.
var importColumns = []string{"name", "quantity", "price", "expire_date"}

// ImportCSV reads products from r and inserts them one by one. Rows that
// fail validation are skipped and reported; a bad row never aborts the run.
// A completed import (with at least one inserted row) surfaces as a single
// system notification keyed by the day.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (*ImportReport, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	report := &ImportReport{}
	line := 1

	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, RowError{Line: line, Err: err})
			continue
		}

		product, err := parseRow(record)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, RowError{Line: line, Err: err})
			continue
		}

		if _, err := s.api.CreateProduct(ctx, product); err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, RowError{Line: line, Err: err})
			s.log.Warn("import row insert failed",
				zap.Int("line", line), zap.Error(err))
			continue
		}
		report.Imported++
	}

	if report.Imported > 0 {
		err := notify.AddSystemNotification(s.bk, model.SystemNotification{
			ID:       fmt.Sprintf("import-%s", time.Now().Format("2006-01-02")),
			IconType: "import",
			IconBg:   "green",
			Title:    "Catalog import complete",
			Description: fmt.Sprintf(
				"%d products imported, %d rows skipped",
				report.Imported, report.Skipped,
			),
			Path: "/inventory",
		})
		if err != nil {
			return report, err
		}
	}

	return report, nil
}

// checkHeader validates the CSV header row.
func checkHeader(header []string) error {
	if len(header) < len(importColumns) {
		return fmt.Errorf(
			"CSV header needs columns %s", strings.Join(importColumns, ","),
		)
	}
	for i, want := range importColumns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return fmt.Errorf(
				"CSV column %d must be %q, got %q", i+1, want, header[i],
			)
		}
	}
	return nil
}

// parseRow converts one CSV record to a product.
func parseRow(record []string) (model.Product, error) {
	if len(record) < len(importColumns) {
		return model.Product{}, fmt.Errorf("expected %d fields, got %d",
			len(importColumns), len(record))
	}

	name := strings.TrimSpace(record[0])
	if name == "" {
		return model.Product{}, fmt.Errorf("name is required")
	}

	quantity, err := strconv.Atoi(strings.TrimSpace(record[1]))
	if err != nil || quantity < 0 {
		return model.Product{}, fmt.Errorf("invalid quantity %q", record[1])
	}

	price, err := parsePrice(strings.TrimSpace(record[2]))
	if err != nil {
		return model.Product{}, err
	}

	product := model.Product{
		Name:      name,
		Quantity:  quantity,
		BasePrice: price,
		Status:    model.ProductStatusAvailable,
	}

	if raw := strings.TrimSpace(record[3]); raw != "" {
		expire, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return model.Product{}, fmt.Errorf("invalid expire_date %q", raw)
		}
		product.ExpireDate = &expire
	}

	return product, nil
}

// parsePrice converts a decimal price string to cents.
func parsePrice(raw string) (int64, error) {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid price %q", raw)
	}
	return int64(value*100 + 0.5), nil
}
