package classify

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/linkminer/pkg/linkminer/internalerr"
)

// LogisticConfig holds training configuration.
type LogisticConfig struct {
	C       float64 // inverse L2 regularisation strength
	MaxIter int
}

// DefaultLogisticConfig returns default training config.
func DefaultLogisticConfig() LogisticConfig {
	return LogisticConfig{
		C:       5.0,
		MaxIter: 200,
	}
}

// LogisticRegression is a weighted binary logistic regression over
// standardised features. Missing (NaN) inputs are replaced by the
// training mean.
type LogisticRegression struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Features  []string  `json:"features"`
	Mean      []float64 `json:"mean"`
	Scale     []float64 `json:"scale"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
	TrainedAt time.Time `json:"trained_at"`

	config LogisticConfig
}

// NewLogisticRegression creates an untrained model.
func NewLogisticRegression(config LogisticConfig) *LogisticRegression {
	if config.C <= 0 {
		config.C = 5.0
	}
	if config.MaxIter <= 0 {
		config.MaxIter = 200
	}
	return &LogisticRegression{config: config}
}

// Trained implements Classifier.
func (m *LogisticRegression) Trained() bool { return m != nil && m.Coef != nil }

// Fit trains the model on d, replacing any previous parameters.
func (m *LogisticRegression) Fit(d *Dataset) error {
	if d == nil || d.Len() == 0 {
		return fmt.Errorf("fit: empty dataset: %w", internalerr.ErrInvalidInput)
	}
	if m.config.C <= 0 || m.config.MaxIter <= 0 {
		m.config = DefaultLogisticConfig()
	}

	dim := len(d.Features)
	m.Mean, m.Scale = standardisation(d)

	x := make([][]float64, d.Len())
	y := make([]float64, d.Len())
	w := make([]float64, d.Len())
	for i, e := range d.Examples {
		x[i] = m.transform(e.Features)
		if e.Label {
			y[i] = 1
		}
		w[i] = e.Weight
	}

	obj := &logRegObjective{x: x, y: y, w: w, reg: 1.0 / m.config.C}
	params := make([]float64, dim+1)

	lbfgs := newLogRegLBFGS(10)
	for range m.config.MaxIter {
		loss, grad := obj.eval(params)
		dir := lbfgs.computeDirection(grad)
		step := obj.lineSearch(params, dir, loss)

		s := make([]float64, len(params))
		for i := range params {
			s[i] = step * dir[i]
			params[i] += s[i]
		}

		_, newGrad := obj.eval(params)
		yVec := make([]float64, len(params))
		for i := range params {
			yVec[i] = newGrad[i] - grad[i]
		}
		lbfgs.update(s, yVec)

		maxGrad := 0.0
		for _, g := range newGrad {
			maxGrad = math.Max(maxGrad, math.Abs(g))
		}
		if maxGrad < 1e-5 {
			break
		}
	}

	m.ID = ulid.Make().String()
	m.Name = d.Name
	m.Features = append([]string(nil), d.Features...)
	m.Coef = params[:dim]
	m.Intercept = params[dim]
	m.TrainedAt = time.Now().UTC()
	return nil
}

// Predict implements Classifier.
func (m *LogisticRegression) Predict(features []float64) (float64, error) {
	if !m.Trained() {
		return 0, internalerr.ErrNotTrained
	}
	if len(features) != len(m.Coef) {
		return 0, fmt.Errorf("expected %d features, got %d: %w", len(m.Coef), len(features), internalerr.ErrInvalidInput)
	}
	z := m.Intercept
	for i, v := range m.transform(features) {
		z += m.Coef[i] * v
	}
	return sigmoid(z), nil
}

func (m *LogisticRegression) transform(features []float64) []float64 {
	out := make([]float64, len(features))
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = (v - m.Mean[i]) / m.Scale[i]
	}
	return out
}

func standardisation(d *Dataset) (mean, scale []float64) {
	dim := len(d.Features)
	mean = make([]float64, dim)
	scale = make([]float64, dim)
	for j := range dim {
		var sum, sumSq float64
		n := 0
		for _, e := range d.Examples {
			v := e.Features[j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			sum += v
			sumSq += v * v
			n++
		}
		scale[j] = 1
		if n == 0 {
			continue
		}
		mean[j] = sum / float64(n)
		variance := sumSq/float64(n) - mean[j]*mean[j]
		if variance > 1e-12 {
			scale[j] = math.Sqrt(variance)
		}
	}
	return mean, scale
}

// Save writes the model as JSON.
func (m *LogisticRegression) Save(w io.Writer) error {
	if !m.Trained() {
		return internalerr.ErrNotTrained
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// SaveFile writes the model to path.
func (m *LogisticRegression) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	if err := m.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("write model: %w", err)
	}
	return f.Close()
}

// LoadLogisticRegression reads a model written by Save.
func LoadLogisticRegression(r io.Reader) (*LogisticRegression, error) {
	m := NewLogisticRegression(DefaultLogisticConfig())
	if err := json.NewDecoder(r).Decode(m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	dim := len(m.Features)
	if len(m.Coef) != dim || len(m.Mean) != dim || len(m.Scale) != dim {
		return nil, fmt.Errorf("model %s has inconsistent dimensions: %w", m.ID, internalerr.ErrInvalidInput)
	}
	return m, nil
}

// LoadFile reads a model from path.
func LoadFile(path string) (*LogisticRegression, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()
	return LoadLogisticRegression(f)
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// logLoss returns -log(sigmoid(z)) without overflow.
func logLoss(z float64) float64 {
	if z > 0 {
		return math.Log1p(math.Exp(-z))
	}
	return -z + math.Log1p(math.Exp(z))
}

type logRegObjective struct {
	x   [][]float64
	y   []float64
	w   []float64
	reg float64
}

// eval returns the weighted negative log likelihood plus the L2 penalty
// on the coefficients, and its gradient. The intercept is the last
// parameter and is not penalised.
func (o *logRegObjective) eval(params []float64) (float64, []float64) {
	dim := len(params) - 1
	grad := make([]float64, len(params))
	loss := 0.0

	for i, row := range o.x {
		z := params[dim]
		for j, v := range row {
			z += params[j] * v
		}
		if o.y[i] == 1 {
			loss += o.w[i] * logLoss(z)
		} else {
			loss += o.w[i] * logLoss(-z)
		}

		diff := o.w[i] * (sigmoid(z) - o.y[i])
		for j, v := range row {
			grad[j] += diff * v
		}
		grad[dim] += diff
	}

	for j := range dim {
		loss += 0.5 * o.reg * params[j] * params[j]
		grad[j] += o.reg * params[j]
	}
	return loss, grad
}

func (o *logRegObjective) lineSearch(params, dir []float64, currentLoss float64) float64 {
	step := 1.0
	next := make([]float64, len(params))
	for range 20 {
		for i := range params {
			next[i] = params[i] + step*dir[i]
		}
		if loss, _ := o.eval(next); loss < currentLoss {
			return step
		}
		step *= 0.5
	}
	return step
}

type logRegLBFGS struct {
	m    int
	s    [][]float64
	y    [][]float64
	rho  []float64
	k    int
	size int
}

func newLogRegLBFGS(m int) *logRegLBFGS {
	return &logRegLBFGS{
		m:   m,
		s:   make([][]float64, m),
		y:   make([][]float64, m),
		rho: make([]float64, m),
	}
}

func (l *logRegLBFGS) update(s, y []float64) {
	sy := dot(s, y)
	if sy <= 1e-12 {
		return
	}
	idx := l.k % l.m
	l.s[idx] = append([]float64(nil), s...)
	l.y[idx] = append([]float64(nil), y...)
	l.rho[idx] = 1.0 / sy
	l.k++
	if l.size < l.m {
		l.size++
	}
}

// computeDirection runs the two-loop recursion and returns the descent
// direction for grad.
func (l *logRegLBFGS) computeDirection(grad []float64) []float64 {
	q := append([]float64(nil), grad...)
	if l.size == 0 {
		for i := range q {
			q[i] = -q[i]
		}
		return q
	}

	alpha := make([]float64, l.size)
	for i := l.size - 1; i >= 0; i-- {
		idx := (l.k - l.size + i) % l.m
		alpha[i] = l.rho[idx] * dot(l.s[idx], q)
		for j := range q {
			q[j] -= alpha[i] * l.y[idx][j]
		}
	}

	latest := (l.k - 1) % l.m
	if yy := dot(l.y[latest], l.y[latest]); yy > 0 {
		gamma := dot(l.s[latest], l.y[latest]) / yy
		for i := range q {
			q[i] *= gamma
		}
	}

	for i := range l.size {
		idx := (l.k - l.size + i) % l.m
		beta := l.rho[idx] * dot(l.y[idx], q)
		for j := range q {
			q[j] += (alpha[i] - beta) * l.s[idx][j]
		}
	}

	for i := range q {
		q[i] = -q[i]
	}
	return q
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
