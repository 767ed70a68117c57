// Package preview renders a single decoded record as a grayscale PNG.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
)

// Image 将 rows x cols 的特征向量转换为灰度图。normalized 为 true 时特征位于 [0,1]
// 并乘以 255，否则按原始像素截断到 [0,255]。
func Image(features []float64, rows, cols int, normalized bool) (*image.Gray, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid image shape %dx%d", rows, cols)
	}
	if len(features) != rows*cols {
		return nil, fmt.Errorf("feature length %d does not match %dx%d", len(features), rows, cols)
	}

	scale := 1.0
	if normalized {
		scale = 255
	}
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := math.Round(features[y*cols+x] * scale)
			img.SetGray(x, y, color.Gray{Y: uint8(math.Max(0, math.Min(255, v)))})
		}
	}
	return img, nil
}

// WritePNG 将记录编码为 PNG 写入 w。
func WritePNG(w io.Writer, features []float64, rows, cols int, normalized bool) error {
	img, err := Image(features, rows, cols, normalized)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// SavePNG 将记录写入 path。
func SavePNG(path string, features []float64, rows, cols int, normalized bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePNG(f, features, rows, cols, normalized); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
