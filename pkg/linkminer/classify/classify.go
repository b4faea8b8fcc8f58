package classify

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
)

// Classifier is a binary classifier over fixed-order feature vectors.
// Predict returns the probability of the positive class.
type Classifier interface {
	Fit(d *Dataset) error
	Predict(features []float64) (float64, error)
	Trained() bool
}

// Func adapts a fixed scoring function to Classifier.
type Func func(features []float64) float64

// Fit implements Classifier. A fixed function cannot be trained.
func (f Func) Fit(*Dataset) error {
	return fmt.Errorf("fixed scoring function cannot be fit: %w", internalerr.ErrInvalidInput)
}

// Predict implements Classifier.
func (f Func) Predict(features []float64) (float64, error) {
	if f == nil {
		return 0, internalerr.ErrNotTrained
	}
	return f(features), nil
}

// Trained implements Classifier.
func (f Func) Trained() bool { return f != nil }

// Example is one labeled feature vector
type Example struct {
	Features []float64
	Label    bool
	Weight   float64
}

// Dataset is a training feature table. Missing values are NaN.
type Dataset struct {
	Name     string
	Features []string
	Examples []Example
}

// NewDataset creates an empty table with the given column order.
func NewDataset(name string, features []string) *Dataset {
	return &Dataset{Name: name, Features: append([]string(nil), features...)}
}

// Add appends an example with unit weight.
func (d *Dataset) Add(features []float64, label bool) error {
	if len(features) != len(d.Features) {
		return fmt.Errorf("expected %d features, got %d: %w", len(d.Features), len(features), internalerr.ErrInvalidInput)
	}
	d.Examples = append(d.Examples, Example{
		Features: append([]float64(nil), features...),
		Label:    label,
		Weight:   1,
	})
	return nil
}

// Len returns the number of examples.
func (d *Dataset) Len() int { return len(d.Examples) }

// Positives returns the number of positive examples.
func (d *Dataset) Positives() int {
	n := 0
	for _, e := range d.Examples {
		if e.Label {
			n++
		}
	}
	return n
}

// Reweight gives both classes the same total weight: positives get
// 0.5/p and negatives 0.5/(1-p), where p is the positive fraction.
// A single-class table keeps unit weights.
func (d *Dataset) Reweight() {
	if len(d.Examples) == 0 {
		return
	}
	p := float64(d.Positives()) / float64(len(d.Examples))
	if p == 0 || p == 1 {
		for i := range d.Examples {
			d.Examples[i].Weight = 1
		}
		return
	}
	for i := range d.Examples {
		if d.Examples[i].Label {
			d.Examples[i].Weight = 0.5 / p
		} else {
			d.Examples[i].Weight = 0.5 / (1 - p)
		}
	}
}

const (
	labelColumn  = "valid"
	weightColumn = "weight"
	missingValue = "?"
)

// WriteCSV writes the table with a header naming the feature order,
// followed by the label and weight columns.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := append(append([]string(nil), d.Features...), labelColumn, weightColumn)
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for _, e := range d.Examples {
		for i, v := range e.Features {
			if math.IsNaN(v) {
				record[i] = missingValue
			} else {
				record[i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		record[len(d.Features)] = strconv.FormatBool(e.Label)
		record[len(d.Features)+1] = strconv.FormatFloat(e.Weight, 'g', -1, 64)
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a table written by WriteCSV.
func ReadCSV(name string, r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 3 || header[len(header)-2] != labelColumn || header[len(header)-1] != weightColumn {
		return nil, fmt.Errorf("header %v lacks %s,%s columns: %w", header, labelColumn, weightColumn, internalerr.ErrInvalidInput)
	}

	d := NewDataset(name, header[:len(header)-2])
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		e := Example{Features: make([]float64, len(d.Features))}
		for i := range d.Features {
			if record[i] == missingValue {
				e.Features[i] = math.NaN()
				continue
			}
			if e.Features[i], err = strconv.ParseFloat(record[i], 64); err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, d.Features[i], err)
			}
		}
		if e.Label, err = strconv.ParseBool(record[len(d.Features)]); err != nil {
			return nil, fmt.Errorf("line %d label: %w", line, err)
		}
		if e.Weight, err = strconv.ParseFloat(record[len(d.Features)+1], 64); err != nil {
			return nil, fmt.Errorf("line %d weight: %w", line, err)
		}
		d.Examples = append(d.Examples, e)
	}
	return d, nil
}
