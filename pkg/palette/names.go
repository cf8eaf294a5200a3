package palette

// ColorName returns a human-readable (Chinese) name for an RGB color.
// Low-saturation colors map to a gray scale, the rest to hue families.
func ColorName(r, g, b int) string {
	maxC := max(r, g, b)
	minC := min(r, g, b)

	value := float64(maxC) / 255
	saturation := 0.0
	if maxC > 0 {
		saturation = float64(maxC-minC) / float64(maxC)
	}

	if saturation < 0.2 {
		switch {
		case value > 0.9:
			return "纯白"
		case value > 0.7:
			return "浅灰"
		case value > 0.3:
			return "中灰"
		case value > 0.1:
			return "深灰"
		default:
			return "纯黑"
		}
	}

	switch {
	case r > g+30 && r > b+30:
		switch {
		case r > 200 && g < 100 && b < 100:
			return "鲜红色"
		case r > 150 && g > 50 && g < 120 && b < 80:
			return "橙红色"
		case r > 120 && g < 80 && b < 80:
			return "深红色"
		}
		return "红色系"
	case g > r+30 && g > b+30:
		switch {
		case g > 200 && r < 100 && b < 100:
			return "鲜绿色"
		case r > 100 && g > 150 && b < 80:
			return "黄绿色"
		case r < 80 && g > 120 && b < 80:
			return "深绿色"
		case r < 100 && g > 150 && b > 100:
			return "青绿色"
		}
		return "绿色系"
	case b > r+30 && b > g+30:
		switch {
		case b > 200 && r < 100 && g < 100:
			return "鲜蓝色"
		case r < 80 && g > 100 && b > 150:
			return "青蓝色"
		case r > 100 && g < 80 && b > 150:
			return "紫蓝色"
		case r < 80 && g < 80 && b > 120:
			return "深蓝色"
		}
		return "蓝色系"
	case r > 150 && g > 150 && b < 100:
		switch {
		case r > 200 && g > 200 && b < 50:
			return "鲜黄色"
		case r > 180 && g > 140 && b < 80:
			return "金黄色"
		}
		return "黄色系"
	case r > 100 && g < 100 && b > 100:
		switch {
		case r > 150 && g < 80 && b > 150:
			return "紫色"
		case r > 120 && g < 60 && b > 100:
			return "深紫色"
		}
		return "紫色系"
	case r < 100 && g > 120 && b > 120:
		if r < 50 && g > 180 && b > 180 {
			return "青色"
		}
		return "青色系"
	case r > 150 && g > 80 && g < 150 && b < 100:
		return "橙色系"
	case r > 80 && r < 160 && g > 50 && g < 120 && b > 20 && b < 80:
		return "棕色系"
	case r > 180 && g > 120 && g < 180 && b > 120 && b < 180:
		return "粉色系"
	}
	return "混合色"
}
