// Package sample holds ready-made pipelines used by the stepchain command:
// a bill calculator and an HTTP feed reader.
package sample

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/askiada/go-stepchain/pkg/pipeline"
)

var (
	ErrInvalidPrice    = errors.New("price is not a valid amount")
	ErrInvalidTaxRate  = errors.New("tax rate is not a valid rate")
	ErrInvalidGratuity = errors.New("gratuity rate is not a valid rate")
)

// Bill is the payload of the calculator pipeline. The initial entry carries
// the price and rates; each step only fills the field it computes.
type Bill struct {
	Currency     string  `json:"currency,omitempty"`
	Symbol       string  `json:"symbol,omitempty"`
	Price        float64 `json:"price,omitempty"`
	TaxRate      float64 `json:"taxRate,omitempty"`
	GratuityRate float64 `json:"gratuityRate,omitempty"`
	Tax          float64 `json:"tax,omitempty"`
	Gratuity     float64 `json:"gratuity,omitempty"`
}

func invalid(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v < 0
}

// TaxStep computes the tax on the initial price. An invalid price fails
// through the continuation, an invalid rate by returning an error.
func TaxStep(_ context.Context, results []Bill, next pipeline.Continuation[Bill]) error {
	bill := results[0]

	if invalid(bill.TaxRate) {
		return errors.Wrapf(ErrInvalidTaxRate, "%v", bill.TaxRate)
	}

	if invalid(bill.Price) {
		next(pipeline.Fail[Bill](errors.Wrapf(ErrInvalidPrice, "%v", bill.Price)))

		return nil
	}

	next(pipeline.Ok(Bill{Tax: bill.Price * bill.TaxRate}))

	return nil
}

// GratuityStep computes the gratuity on the taxed price. It hands its
// result back from another goroutine.
func GratuityStep(_ context.Context, results []Bill, next pipeline.Continuation[Bill]) error {
	bill := results[0]

	if invalid(bill.Price) {
		return errors.Wrapf(ErrInvalidPrice, "%v", bill.Price)
	}

	if invalid(bill.GratuityRate) {
		next(pipeline.Fail[Bill](errors.Wrapf(ErrInvalidGratuity, "%v", bill.GratuityRate)))

		return nil
	}

	tax := math.NaN()
	if len(results) > 1 {
		tax = results[1].Tax
	}

	go next(pipeline.Ok(Bill{Gratuity: (bill.Price + tax) * bill.GratuityRate}))

	return nil
}

// NewCalculator returns the tax then gratuity pipeline.
func NewCalculator(opts ...pipeline.Option) (*pipeline.Pipeline[Bill], error) {
	pipe, err := pipeline.New[Bill]("Tax and Gratuity Calculator", opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create calculator")
	}

	pipe.
		Use(TaxStep, pipeline.StepName("Calculate Tax")).
		Use(GratuityStep, pipeline.StepName("Calculate Gratuity"))

	return pipe, nil
}

// Summary is the outcome of a calculator run.
type Summary struct {
	Currency          string
	Symbol            string
	Price             float64
	Tax               float64
	Total             float64
	Gratuity          float64
	TotalWithGratuity float64
}

// Summarize reads a complete calculator result log.
func Summarize(results []Bill) (Summary, error) {
	if len(results) < 3 {
		return Summary{}, errors.Errorf("expected 3 results, got %d", len(results))
	}

	bill := results[0]
	tax := results[1].Tax
	gratuity := results[2].Gratuity

	return Summary{
		Currency:          bill.Currency,
		Symbol:            bill.Symbol,
		Price:             bill.Price,
		Tax:               tax,
		Total:             bill.Price + tax,
		Gratuity:          gratuity,
		TotalWithGratuity: bill.Price + tax + gratuity,
	}, nil
}

// Print writes the summary the way a receipt would show it.
func (s Summary) Print(wrt io.Writer) error {
	lines := []struct {
		label string
		value float64
	}{
		{"Price", s.Price},
		{"Tax", s.Tax},
		{"Total", s.Total},
		{"Gratuity", s.Gratuity},
		{"Total with Gratuity", s.TotalWithGratuity},
	}

	for _, line := range lines {
		_, err := fmt.Fprintf(wrt, "%s: %s%.2f %s\n", line.label, s.Symbol, line.value, s.Currency)
		if err != nil {
			return errors.Wrap(err, "unable to write summary")
		}
	}

	return nil
}
