// Package weights loads the parameters of a three-layer network: weight
// matrices W1..W3 and bias vectors b1..b3, stored back to back in gonum's
// binary matrix encoding in that fixed order.
package weights

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"
)

// WeightNames 与 BiasNames 是固定的参数名，顺序即文件中的存储顺序。
var (
	WeightNames = []string{"W1", "W2", "W3"}
	BiasNames   = []string{"b1", "b2", "b3"}
)

// Params 保存按层排列的权重矩阵与偏置向量。
type Params struct {
	Weights []*mat.Dense
	Biases  []*mat.VecDense
}

// Matrix 按名称返回权重矩阵。
func (p *Params) Matrix(name string) (*mat.Dense, bool) {
	for i, n := range WeightNames {
		if n == name && i < len(p.Weights) {
			return p.Weights[i], true
		}
	}
	return nil, false
}

// Bias 按名称返回偏置向量。
func (p *Params) Bias(name string) (*mat.VecDense, bool) {
	for i, n := range BiasNames {
		if n == name && i < len(p.Biases) {
			return p.Biases[i], true
		}
	}
	return nil, false
}

// Validate 检查层数以及相邻层形状是否衔接：W_k 的列数等于 len(b_k) 与 W_{k+1} 的行数。
func (p *Params) Validate() error {
	if len(p.Weights) != len(WeightNames) || len(p.Biases) != len(BiasNames) {
		return fmt.Errorf("expected %d weights and %d biases, got %d and %d",
			len(WeightNames), len(BiasNames), len(p.Weights), len(p.Biases))
	}
	for i, w := range p.Weights {
		_, cols := w.Dims()
		if b := p.Biases[i].Len(); b != cols {
			return fmt.Errorf("%s has %d columns but %s has length %d", WeightNames[i], cols, BiasNames[i], b)
		}
		if i+1 < len(p.Weights) {
			if next, _ := p.Weights[i+1].Dims(); next != cols {
				return fmt.Errorf("%s has %d columns but %s has %d rows", WeightNames[i], cols, WeightNames[i+1], next)
			}
		}
	}
	return nil
}

// InputSize 返回第一层期望的特征数。
func (p *Params) InputSize() int {
	if len(p.Weights) == 0 {
		return 0
	}
	r, _ := p.Weights[0].Dims()
	return r
}

// Load 依次读取 W1..W3、b1..b3 并校验形状。
func Load(r io.Reader) (*Params, error) {
	p := &Params{}
	for _, name := range WeightNames {
		var m mat.Dense
		if _, err := m.UnmarshalBinaryFrom(r); err != nil {
			return nil, decodeErr(name, err)
		}
		p.Weights = append(p.Weights, &m)
	}
	for _, name := range BiasNames {
		var v mat.VecDense
		if _, err := v.UnmarshalBinaryFrom(r); err != nil {
			return nil, decodeErr(name, err)
		}
		p.Biases = append(p.Biases, &v)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadFile 从路径读取参数文件。
func LoadFile(path string) (*Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Save 以 Load 可读取的格式写出参数。
func Save(w io.Writer, p *Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	for i, m := range p.Weights {
		if _, err := m.MarshalBinaryTo(w); err != nil {
			return fmt.Errorf("encode %s: %w", WeightNames[i], err)
		}
	}
	for i, v := range p.Biases {
		if _, err := v.MarshalBinaryTo(w); err != nil {
			return fmt.Errorf("encode %s: %w", BiasNames[i], err)
		}
	}
	return nil
}

func decodeErr(name string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("decode %s: %w", name, err)
}
