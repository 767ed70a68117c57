package idx

import (
	"fmt"
	"math"
	"math/bits"
)

const (
	// MagicLabels 标识一维标签文件。
	MagicLabels uint32 = 2049
	// MagicImages 标识三维图像文件（数量、行、列）。
	MagicImages uint32 = 2051
)

// Kind 区分标签文件与图像文件。
type Kind int

const (
	KindLabels Kind = iota + 1
	KindImages
)

func (k Kind) String() string {
	switch k {
	case KindLabels:
		return "labels"
	case KindImages:
		return "images"
	default:
		return "unknown"
	}
}

// Dataset 是解码后的 IDX 文件：维度序列与原始字节负载。
// 图像文件 Dims 为 [count, rows, cols]，标签文件为 [count]。
type Dataset struct {
	Magic   uint32
	Dims    []int
	Payload []byte
}

// Kind 根据魔数返回文件类型。
func (d *Dataset) Kind() Kind {
	switch d.Magic {
	case MagicLabels:
		return KindLabels
	case MagicImages:
		return KindImages
	default:
		return 0
	}
}

// Count 返回记录数量，即 Dims[0]。
func (d *Dataset) Count() int {
	if len(d.Dims) == 0 {
		return 0
	}
	return d.Dims[0]
}

// RecordLen 返回单条记录的元素个数；标签文件为 1。
func (d *Dataset) RecordLen() int {
	if len(d.Dims) == 0 {
		return 0
	}
	n := 1
	for _, dim := range d.Dims[1:] {
		n *= dim
	}
	return n
}

// Rows 与 Cols 仅对图像文件有意义，其余情况返回 0。
func (d *Dataset) Rows() int {
	if d.Kind() != KindImages {
		return 0
	}
	return d.Dims[1]
}

func (d *Dataset) Cols() int {
	if d.Kind() != KindImages {
		return 0
	}
	return d.Dims[2]
}

// Validate 确认负载至少覆盖声明维度的乘积；乘积溢出同样视为格式错误。
func (d *Dataset) Validate() error {
	if len(d.Dims) == 0 {
		return &FormatError{Magic: d.Magic, Reason: "header declares no dimensions"}
	}
	want, ok := product(d.Dims)
	if !ok {
		return &FormatError{
			Magic:  d.Magic,
			Reason: fmt.Sprintf("dimensions %v overflow the addressable size", d.Dims),
		}
	}
	if _, ok := product(d.Dims[1:]); !ok {
		return &FormatError{
			Magic:  d.Magic,
			Reason: fmt.Sprintf("record dimensions %v overflow the addressable size", d.Dims[1:]),
		}
	}
	if uint64(len(d.Payload)) < want {
		return &FormatError{
			Magic:  d.Magic,
			Reason: fmt.Sprintf("payload has %d bytes, dimensions %v require %d", len(d.Payload), d.Dims, want),
		}
	}
	return nil
}

// product 计算维度乘积，负数维度或超出 int 范围时 ok 为 false。
func product(dims []int) (n uint64, ok bool) {
	n = 1
	for _, dim := range dims {
		if dim < 0 {
			return 0, false
		}
		hi, lo := bits.Mul64(n, uint64(dim))
		if hi != 0 || lo > math.MaxInt {
			return 0, false
		}
		n = lo
	}
	return n, true
}

// Raw 返回第 i 条记录的原始字节切片（与 Payload 共享内存）。
func (d *Dataset) Raw(i int) ([]byte, error) {
	if i < 0 || i >= d.Count() {
		return nil, fmt.Errorf("record %d out of range [0,%d)", i, d.Count())
	}
	n := d.RecordLen()
	if n < 0 || (n > 0 && len(d.Payload)/n <= i) {
		return nil, &FormatError{
			Magic:  d.Magic,
			Reason: fmt.Sprintf("record %d exceeds payload of %d bytes", i, len(d.Payload)),
		}
	}
	return d.Payload[i*n : (i+1)*n], nil
}

// Record 返回第 i 条记录的特征向量；normalize 为 true 时每个字节除以 255。
func (d *Dataset) Record(i int, normalize bool) ([]float64, error) {
	raw, err := d.Raw(i)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	Scale(out, raw, normalize)
	return out, nil
}

// Label 返回标签文件第 i 条记录。
func (d *Dataset) Label(i int) (uint8, error) {
	raw, err := d.Raw(i)
	if err != nil {
		return 0, err
	}
	return raw[0], nil
}

// Scale 将 src 的每个字节映射到 dst：normalize 时为 b/255，否则为 float64(b)。
func Scale(dst []float64, src []byte, normalize bool) {
	if normalize {
		for i, b := range src {
			dst[i] = float64(b) / 255.0
		}
		return
	}
	for i, b := range src {
		dst[i] = float64(b)
	}
}
