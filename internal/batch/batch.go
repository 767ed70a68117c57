// Package batch pairs decoded image records with their labels and partitions
// them into equal-size, order-preserving batches backed by gonum matrices.
package batch

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/idx-hub/idx-hub/internal/idx"
)

// SizeError 表示批大小非法、记录数无法整除，或图像与标签数量不一致。
type SizeError struct {
	Records   int
	BatchSize int
	Labels    int
	Reason    string
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("batch size error: %s (records=%d batch_size=%d labels=%d)", e.Reason, e.Records, e.BatchSize, e.Labels)
}

// Record 是一条已配对的样本。
type Record struct {
	Features []float64
	Label    uint8
}

// Batch 中 Features 的第 i 行对应 Labels[i]。
type Batch struct {
	Features *mat.Dense
	Labels   []uint8
}

// Len 返回批内记录数。
func (b Batch) Len() int {
	return len(b.Labels)
}

// Pair 按位置将图像记录与标签配对，两者数量必须一致。
func Pair(images, labels *idx.Dataset, normalize bool) ([]Record, error) {
	if err := checkKinds(images, labels); err != nil {
		return nil, err
	}
	if images.Count() != labels.Count() {
		return nil, &SizeError{Records: images.Count(), Labels: labels.Count(), Reason: "image and label counts differ"}
	}
	records := make([]Record, images.Count())
	for i := range records {
		features, err := images.Record(i, normalize)
		if err != nil {
			return nil, err
		}
		label, err := labels.Label(i)
		if err != nil {
			return nil, err
		}
		records[i] = Record{Features: features, Label: label}
	}
	return records, nil
}

// Partition 将记录连续地切分为大小为 size 的批，size 必须整除记录数。
func Partition(records []Record, size int) ([]Batch, error) {
	if err := checkSize(len(records), size); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	width := len(records[0].Features)
	if width == 0 {
		return nil, fmt.Errorf("records have no features")
	}
	batches := make([]Batch, 0, len(records)/size)
	for start := 0; start < len(records); start += size {
		data := make([]float64, 0, size*width)
		labels := make([]uint8, 0, size)
		for _, r := range records[start : start+size] {
			if len(r.Features) != width {
				return nil, fmt.Errorf("record %d has %d features, want %d", start+len(labels), len(r.Features), width)
			}
			data = append(data, r.Features...)
			labels = append(labels, r.Label)
		}
		batches = append(batches, Batch{Features: mat.NewDense(size, width, data), Labels: labels})
	}
	return batches, nil
}

// Assemble 直接从解码数据构建批，逐条缩放像素，避免先物化全部记录。
func Assemble(images, labels *idx.Dataset, size int, normalize bool) ([]Batch, error) {
	if err := checkKinds(images, labels); err != nil {
		return nil, err
	}
	count := images.Count()
	if count != labels.Count() {
		return nil, &SizeError{Records: count, BatchSize: size, Labels: labels.Count(), Reason: "image and label counts differ"}
	}
	if err := checkSize(count, size); err != nil {
		return nil, err
	}

	width := images.RecordLen()
	if width == 0 && count > 0 {
		return nil, fmt.Errorf("image records have no pixels (dims %v)", images.Dims)
	}
	batches := make([]Batch, 0, count/size)
	for start := 0; start < count; start += size {
		data := make([]float64, size*width)
		ls := make([]uint8, size)
		for i := 0; i < size; i++ {
			raw, err := images.Raw(start + i)
			if err != nil {
				return nil, err
			}
			idx.Scale(data[i*width:(i+1)*width], raw, normalize)
			if ls[i], err = labels.Label(start + i); err != nil {
				return nil, err
			}
		}
		batches = append(batches, Batch{Features: mat.NewDense(size, width, data), Labels: ls})
	}
	return batches, nil
}

func checkSize(count, size int) error {
	if size <= 0 {
		return &SizeError{Records: count, BatchSize: size, Reason: "batch size must be positive"}
	}
	if count%size != 0 {
		return &SizeError{Records: count, BatchSize: size, Reason: "record count is not divisible by batch size"}
	}
	return nil
}

func checkKinds(images, labels *idx.Dataset) error {
	if images == nil || labels == nil {
		return fmt.Errorf("images and labels are required")
	}
	if images.Kind() != idx.KindImages {
		return fmt.Errorf("expected image dataset, got %s", images.Kind())
	}
	if labels.Kind() != idx.KindLabels {
		return fmt.Errorf("expected label dataset, got %s", labels.Kind())
	}
	if err := images.Validate(); err != nil {
		return err
	}
	return labels.Validate()
}
