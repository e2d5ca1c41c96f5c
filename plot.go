package dfr

import (
	"context"

	"github.com/dfrcore/dfr/columnar"
	"github.com/dfrcore/dfr/dtype"
	"github.com/dfrcore/dfr/internal/engerr"
	"github.com/dfrcore/dfr/plan"
	"github.com/dfrcore/dfr/preview"
)

// PlotSeries is one y-column's extract against a shared x-column, with
// rows dropped pairwise wherever either side is null.
type PlotSeries struct {
	Name string    `json:"name"`
	X    []float64 `json:"x"`
	Y    []float64 `json:"y"`
}

// PlotData answers GetPlotData: whether the x-axis is a datetime (values
// are then Unix seconds, for the caller's own axis formatting) and one
// series per requested y-column.
type PlotData struct {
	XIsDatetime bool         `json:"x_is_datetime"`
	Series      []PlotSeries `json:"series"`
}

// HistogramSeries is one numeric column's non-null values.
type HistogramSeries struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// HistogramData answers GetHistogramData: one series per requested
// numeric column.
type HistogramData struct {
	Series []HistogramSeries `json:"series"`
}

// GetPlotData extracts xCol against each of yCols from the session's
// materialized preview frame, restricted to numeric/datetime columns.
// Rows are dropped pairwise per series wherever x or that series' y is
// null, so each series may have a different length.
func (f *Facade) GetPlotData(ctx context.Context, xCol string, yCols []string) (PlotData, error) {
	p, err := f.planSnapshot(ctx)
	if err != nil {
		return PlotData{}, err
	}

	frame, err := preview.Frame(ctx, p, int64(f.cfg.PreviewRowLimit))
	if err != nil {
		return PlotData{}, err
	}
	defer frame.Release()

	schema := frame.Schema()
	xIdx := schema.IndexOf(xCol)
	if xIdx < 0 {
		return PlotData{}, engerr.New(engerr.KindInvalidPlan, "column %q not found", xCol)
	}
	xType := schema[xIdx].Type
	if !xType.IsNumeric() && xType != dtype.Datetime && xType != dtype.Date {
		return PlotData{}, engerr.New(engerr.KindTypeError, "column %q is not numeric or datetime", xCol)
	}

	xValues, xValid, xIsDatetime, err := numericOrDatetimeColumn(frame, xCol, xType)
	if err != nil {
		return PlotData{}, err
	}

	series := make([]PlotSeries, 0, len(yCols))
	for _, yCol := range yCols {
		yIdx := schema.IndexOf(yCol)
		if yIdx < 0 {
			return PlotData{}, engerr.New(engerr.KindInvalidPlan, "column %q not found", yCol)
		}
		yType := schema[yIdx].Type
		if !yType.IsNumeric() && yType != dtype.Datetime && yType != dtype.Date {
			return PlotData{}, engerr.New(engerr.KindTypeError, "column %q is not numeric or datetime", yCol)
		}
		yValues, yValid, _, err := numericOrDatetimeColumn(frame, yCol, yType)
		if err != nil {
			return PlotData{}, err
		}

		s := PlotSeries{Name: yCol}
		for i := range xValues {
			if !xValid[i] || !yValid[i] {
				continue
			}
			s.X = append(s.X, xValues[i])
			s.Y = append(s.Y, yValues[i])
		}
		series = append(series, s)
	}

	return PlotData{XIsDatetime: xIsDatetime, Series: series}, nil
}

// GetHistogramData extracts each of columns' non-null values from the
// session's materialized preview frame, restricted to numeric columns.
func (f *Facade) GetHistogramData(ctx context.Context, columns []string) (HistogramData, error) {
	p, err := f.planSnapshot(ctx)
	if err != nil {
		return HistogramData{}, err
	}

	frame, err := preview.Frame(ctx, p, int64(f.cfg.PreviewRowLimit))
	if err != nil {
		return HistogramData{}, err
	}
	defer frame.Release()

	schema := frame.Schema()
	series := make([]HistogramSeries, 0, len(columns))
	for _, col := range columns {
		idx := schema.IndexOf(col)
		if idx < 0 {
			return HistogramData{}, engerr.New(engerr.KindInvalidPlan, "column %q not found", col)
		}
		if !schema[idx].Type.IsNumeric() {
			return HistogramData{}, engerr.New(engerr.KindTypeError, "column %q is not numeric", col)
		}

		values, valid, err := frame.ColumnF64(col)
		if err != nil {
			return HistogramData{}, engerr.New(engerr.KindExecutionError, "histogram %q: %v", col, err)
		}
		s := HistogramSeries{Name: col}
		for i, v := range values {
			if valid[i] {
				s.Values = append(s.Values, v)
			}
		}
		series = append(series, s)
	}

	return HistogramData{Series: series}, nil
}

// planSnapshot builds the session's current plan on the worker goroutine,
// shared by GetPlotData/GetHistogramData so neither reaches into the
// Session directly.
func (f *Facade) planSnapshot(ctx context.Context) (*plan.LazyPlan, error) {
	var p *plan.LazyPlan
	var buildErr error
	if err := f.w.submit(ctx, func(ctx context.Context) {
		p, buildErr = f.buildPlan(ctx)
	}); err != nil {
		return nil, err
	}
	return p, buildErr
}

// numericOrDatetimeColumn returns col's values as float64 (Unix seconds
// for datetime/date columns), a validity mask, and whether the column was
// datetime-typed.
func numericOrDatetimeColumn(frame *columnar.Frame, col string, t dtype.Dtype) ([]float64, []bool, bool, error) {
	if t == dtype.Datetime || t == dtype.Date {
		secs, valid, err := frame.ColumnDatetimeUnixSeconds(col)
		if err != nil {
			return nil, nil, false, engerr.New(engerr.KindExecutionError, "plot %q: %v", col, err)
		}
		values := make([]float64, len(secs))
		for i, s := range secs {
			values[i] = float64(s)
		}
		return values, valid, true, nil
	}
	values, valid, err := frame.ColumnF64(col)
	if err != nil {
		return nil, nil, false, engerr.New(engerr.KindExecutionError, "plot %q: %v", col, err)
	}
	return values, valid, false, nil
}
