// Package model реализует инференс рекуррентной модели реконструкции:
// LSTM-слои, dropout и полносвязный выход, веса которых экспортируются
// из обученной модели в JSON.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"hydroguard/internal/analytics"
)

// Типы слоев
const (
	LayerLSTM    = "lstm"
	LayerDropout = "dropout"
	LayerDense   = "dense"
)

// Layer описание слоя в файле весов.
// Kernel имеет форму [вход][4*units] для LSTM (порядок гейтов i, f, c, o)
// и [вход][units] для dense.
type Layer struct {
	Type                string      `json:"type"`
	Units               int         `json:"units,omitempty"`
	Activation          string      `json:"activation,omitempty"`
	RecurrentActivation string      `json:"recurrent_activation,omitempty"`
	ReturnSequences     bool        `json:"return_sequences,omitempty"`
	Rate                float64     `json:"rate,omitempty"`
	Kernel              [][]float64 `json:"kernel,omitempty"`
	RecurrentKernel     [][]float64 `json:"recurrent_kernel,omitempty"`
	Bias                []float64   `json:"bias,omitempty"`
}

// Weights содержимое файла весов
type Weights struct {
	Name      string  `json:"name,omitempty"`
	InputDim  int     `json:"input_dim"`
	Timesteps int     `json:"timesteps,omitempty"`
	Layers    []Layer `json:"layers"`
}

// Network загруженная модель, только для чтения после создания
type Network struct {
	weights Weights
}

var _ analytics.Predictor = (*Network)(nil)

// Parse разбирает и проверяет JSON весов
func Parse(data []byte) (*Network, error) {
	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse weights: %w", err)
	}
	return New(w)
}

// New создает сеть из весов после проверки форм
func New(w Weights) (*Network, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Network{weights: w}, nil
}

// Validate проверяет согласованность размерностей слоев
func (w Weights) Validate() error {
	if w.InputDim <= 0 {
		return errors.New("weights: input_dim must be positive")
	}
	if len(w.Layers) == 0 {
		return errors.New("weights: no layers")
	}

	width := w.InputDim
	sequence := true
	for i, l := range w.Layers {
		if l.Type != LayerDropout && l.Units <= 0 {
			return fmt.Errorf("weights: layer %d: units must be positive", i)
		}
		switch l.Type {
		case LayerLSTM:
			if !sequence {
				return fmt.Errorf("weights: layer %d: lstm after a layer that does not return sequences", i)
			}
			if err := checkShape(l.Kernel, width, 4*l.Units); err != nil {
				return fmt.Errorf("weights: layer %d kernel: %w", i, err)
			}
			if err := checkShape(l.RecurrentKernel, l.Units, 4*l.Units); err != nil {
				return fmt.Errorf("weights: layer %d recurrent_kernel: %w", i, err)
			}
			if len(l.Bias) != 4*l.Units {
				return fmt.Errorf("weights: layer %d bias has %d values, expected %d", i, len(l.Bias), 4*l.Units)
			}
			if _, err := activation(l.Activation, "tanh"); err != nil {
				return fmt.Errorf("weights: layer %d: %w", i, err)
			}
			if _, err := activation(l.RecurrentActivation, "sigmoid"); err != nil {
				return fmt.Errorf("weights: layer %d: %w", i, err)
			}
			width = l.Units
			sequence = l.ReturnSequences
		case LayerDropout:
			if l.Rate < 0 || l.Rate >= 1 {
				return fmt.Errorf("weights: layer %d: dropout rate %v out of range", i, l.Rate)
			}
		case LayerDense:
			if sequence {
				return fmt.Errorf("weights: layer %d: dense layer needs the last lstm to return a single state", i)
			}
			if err := checkShape(l.Kernel, width, l.Units); err != nil {
				return fmt.Errorf("weights: layer %d kernel: %w", i, err)
			}
			if len(l.Bias) != l.Units {
				return fmt.Errorf("weights: layer %d bias has %d values, expected %d", i, len(l.Bias), l.Units)
			}
			if _, err := activation(l.Activation, "linear"); err != nil {
				return fmt.Errorf("weights: layer %d: %w", i, err)
			}
			width = l.Units
		default:
			return fmt.Errorf("weights: layer %d: unknown type %q", i, l.Type)
		}
	}

	if sequence {
		return errors.New("weights: network must end with a single output vector")
	}
	if width != w.InputDim {
		return fmt.Errorf("%w: output width %d differs from input_dim %d", analytics.ErrConfigMismatch, width, w.InputDim)
	}
	return nil
}

// Name имя модели из файла весов
func (n *Network) Name() string {
	return n.weights.Name
}

// InputDim количество признаков на входе
func (n *Network) InputDim() int {
	return n.weights.InputDim
}

// Timesteps длина контекста, на которой обучалась модель (0 если не указана)
func (n *Network) Timesteps() int {
	return n.weights.Timesteps
}

// Layers описание слоев без весов, для вывода
func (n *Network) Layers() []string {
	out := make([]string, 0, len(n.weights.Layers))
	for _, l := range n.weights.Layers {
		switch l.Type {
		case LayerDropout:
			out = append(out, fmt.Sprintf("dropout(rate=%.2f)", l.Rate))
		case LayerLSTM:
			act, _ := activation(l.Activation, "tanh")
			out = append(out, fmt.Sprintf("lstm(units=%d, activation=%s, return_sequences=%t)",
				l.Units, act.name, l.ReturnSequences))
		default:
			act, _ := activation(l.Activation, "linear")
			out = append(out, fmt.Sprintf("dense(units=%d, activation=%s)", l.Units, act.name))
		}
	}
	return out
}

// Predict прогоняет контекст (timesteps x InputDim) через сеть и возвращает
// предсказание следующей строки
func (n *Network) Predict(context [][]float64) ([]float64, error) {
	if len(context) == 0 {
		return nil, fmt.Errorf("%w: empty context", analytics.ErrData)
	}
	for i, row := range context {
		if len(row) != n.weights.InputDim {
			return nil, fmt.Errorf("%w: context row %d has %d features, model expects %d",
				analytics.ErrConfigMismatch, i, len(row), n.weights.InputDim)
		}
	}

	seq := context
	var vec []float64
	for _, l := range n.weights.Layers {
		switch l.Type {
		case LayerLSTM:
			states := runLSTM(l, seq)
			if l.ReturnSequences {
				seq = states
			} else {
				vec = states[len(states)-1]
			}
		case LayerDropout:
			// при инференсе dropout не применяется
		case LayerDense:
			vec = runDense(l, vec)
		}
	}
	return vec, nil
}

func runLSTM(l Layer, seq [][]float64) [][]float64 {
	act, _ := activation(l.Activation, "tanh")
	rec, _ := activation(l.RecurrentActivation, "sigmoid")

	units := l.Units
	h := make([]float64, units)
	c := make([]float64, units)
	z := make([]float64, 4*units)
	out := make([][]float64, len(seq))

	for t, x := range seq {
		copy(z, l.Bias)
		for i, xi := range x {
			if xi == 0 {
				continue
			}
			row := l.Kernel[i]
			for k := range z {
				z[k] += xi * row[k]
			}
		}
		for i, hi := range h {
			if hi == 0 {
				continue
			}
			row := l.RecurrentKernel[i]
			for k := range z {
				z[k] += hi * row[k]
			}
		}

		next := make([]float64, units)
		for u := 0; u < units; u++ {
			in := rec.fn(z[u])
			forget := rec.fn(z[units+u])
			candidate := act.fn(z[2*units+u])
			output := rec.fn(z[3*units+u])

			c[u] = forget*c[u] + in*candidate
			next[u] = output * act.fn(c[u])
		}
		h = next
		out[t] = next
	}
	return out
}

func runDense(l Layer, x []float64) []float64 {
	act, _ := activation(l.Activation, "linear")
	out := make([]float64, l.Units)
	copy(out, l.Bias)
	for i, xi := range x {
		row := l.Kernel[i]
		for k := range out {
			out[k] += xi * row[k]
		}
	}
	for k := range out {
		out[k] = act.fn(out[k])
	}
	return out
}

type activationFunc struct {
	name string
	fn   func(float64) float64
}

func activation(name, fallback string) (activationFunc, error) {
	if name == "" {
		name = fallback
	}
	switch name {
	case "linear":
		return activationFunc{name, func(v float64) float64 { return v }}, nil
	case "relu":
		return activationFunc{name, func(v float64) float64 { return math.Max(0, v) }}, nil
	case "tanh":
		return activationFunc{name, math.Tanh}, nil
	case "sigmoid":
		return activationFunc{name, func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }}, nil
	case "hard_sigmoid":
		return activationFunc{name, func(v float64) float64 { return math.Max(0, math.Min(1, 0.2*v+0.5)) }}, nil
	default:
		return activationFunc{}, fmt.Errorf("unsupported activation %q", name)
	}
}

func checkShape(m [][]float64, rows, cols int) error {
	if len(m) != rows {
		return fmt.Errorf("has %d rows, expected %d", len(m), rows)
	}
	for i, r := range m {
		if len(r) != cols {
			return fmt.Errorf("row %d has %d columns, expected %d", i, len(r), cols)
		}
	}
	return nil
}
