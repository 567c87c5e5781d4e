package util

import "math"

// Round2 保留两位小数，百分比统一用此精度存储
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
