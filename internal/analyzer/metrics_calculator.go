package analyzer

import (
	"image"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"
)

const (
	// Laplacian responses on 8-bit input lie in [-4*255, 4*255].
	laplacianOffset = 4 * 255
	laplacianBins   = 2*laplacianOffset + 1

	// Below this pixel count strips are not worth a goroutine each.
	parallelPixelThreshold = 100000
)

// Sample value for every histogram index.
var (
	byteValues      = binValues(256, 0)
	laplacianValues = binValues(laplacianBins, laplacianOffset)
)

func binValues(n, offset int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i - offset)
	}
	return values
}

// metricsCalculator implements MetricsCalculator. All statistics are taken
// over integer-valued samples, so each one is accumulated as a histogram and
// reduced with Gonum's weighted population moments. This keeps memory flat
// regardless of image size and makes the results exact and repeatable.
type metricsCalculator struct {
	histPool sync.Pool
}

// NewMetricsCalculator creates a new metrics calculator using Gonum
func NewMetricsCalculator() MetricsCalculator {
	return &metricsCalculator{
		histPool: sync.Pool{
			New: func() interface{} {
				return make([]float64, laplacianBins)
			},
		},
	}
}

// CalculateMetrics computes contrast, clarity and noise for one image
func (mc *metricsCalculator) CalculateMetrics(img image.Image) Metrics {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return Metrics{}
	}

	// Non-premultiplied 8-bit samples with the origin at (0, 0); alpha is ignored.
	nrgba := imaging.Clone(img)
	gray := mc.ToGray(nrgba)

	return Metrics{
		Contrast: mc.CalculateContrast(nrgba),
		Clarity:  mc.CalculateLaplacianVariance(gray),
		Noise:    mc.CalculateNoise(gray),
	}
}

// ToGray converts with the fixed-point ITU-R 601 luma weights
func (mc *metricsCalculator) ToGray(img *image.NRGBA) *image.Gray {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	gray := image.NewGray(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+width*4]
		dst := gray.Pix[y*gray.Stride : y*gray.Stride+width]
		for x := range dst {
			r, g, b := uint32(src[4*x]), uint32(src[4*x+1]), uint32(src[4*x+2])
			dst[x] = uint8((4899*r + 9617*g + 1868*b + 8192) >> 14)
		}
	}
	return gray
}

// CalculateContrast is the population standard deviation of every R, G and B sample
func (mc *metricsCalculator) CalculateContrast(img *image.NRGBA) float64 {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return 0
	}

	hist := mc.accumulateRows(height, width, 256, func(y int, hist []float64) {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for i := 0; i < len(row); i += 4 {
			hist[row[i]]++
			hist[row[i+1]]++
			hist[row[i+2]]++
		}
	})
	defer mc.putHist(hist)

	return stat.PopStdDev(byteValues, hist[:256])
}

// CalculateLaplacianVariance applies the 4-neighbour Laplacian kernel
// [0, 1, 0; 1, -4, 1; 0, 1, 0] over the whole frame with mirrored borders
// and returns the population variance of the response.
func (mc *metricsCalculator) CalculateLaplacianVariance(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return 0
	}

	hist := mc.accumulateRows(height, width, laplacianBins, func(y int, hist []float64) {
		up := rowOf(gray, reflect101(y-1, height))
		mid := rowOf(gray, y)
		down := rowOf(gray, reflect101(y+1, height))
		for x := 0; x < width; x++ {
			left := int(mid[reflect101(x-1, width)])
			right := int(mid[reflect101(x+1, width)])
			lap := int(up[x]) + int(down[x]) + left + right - 4*int(mid[x])
			hist[lap+laplacianOffset]++
		}
	})
	defer mc.putHist(hist)

	return stat.PopVariance(laplacianValues, hist)
}

// CalculateNoise blurs with the 3x3 Gaussian [1 2 1]^T[1 2 1]/16, rounds back
// to 8 bits, and returns the population variance of blur-gray taken modulo
// 256. The wrap-around is part of the metric: default noise thresholds are
// calibrated against it.
func (mc *metricsCalculator) CalculateNoise(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return 0
	}

	hist := mc.accumulateRows(height, width, 256, func(y int, hist []float64) {
		up := rowOf(gray, reflect101(y-1, height))
		mid := rowOf(gray, y)
		down := rowOf(gray, reflect101(y+1, height))
		for x := 0; x < width; x++ {
			xl, xr := reflect101(x-1, width), reflect101(x+1, width)
			top := int(up[xl]) + 2*int(up[x]) + int(up[xr])
			center := int(mid[xl]) + 2*int(mid[x]) + int(mid[xr])
			bottom := int(down[xl]) + 2*int(down[x]) + int(down[xr])
			blurred := uint8((top + 2*center + bottom + 8) >> 4)
			hist[blurred-mid[x]]++
		}
	})
	defer mc.putHist(hist)

	return stat.PopVariance(byteValues, hist[:256])
}

// accumulateRows runs fn for every row into a zeroed histogram of the given
// size. Large images are split into horizontal strips, one histogram per
// strip, merged at the end.
func (mc *metricsCalculator) accumulateRows(height, width, bins int, fn func(y int, hist []float64)) []float64 {
	total := mc.getHist(bins)

	numWorkers := runtime.NumCPU()
	if width*height < parallelPixelThreshold || numWorkers < 2 {
		for y := 0; y < height; y++ {
			fn(y, total)
		}
		return total
	}
	if height < numWorkers {
		numWorkers = height
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers // ceil division

	partials := make([][]float64, numWorkers)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		startY := i * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > height {
			endY = height
		}
		partials[i] = mc.getHist(bins)
		if startY >= endY {
			continue
		}
		wg.Add(1)
		go func(hist []float64, startY, endY int) {
			defer wg.Done()
			for y := startY; y < endY; y++ {
				fn(y, hist)
			}
		}(partials[i], startY, endY)
	}
	wg.Wait()

	for _, partial := range partials {
		for i, count := range partial {
			total[i] += count
		}
		mc.putHist(partial)
	}
	return total
}

func (mc *metricsCalculator) getHist(bins int) []float64 {
	hist := mc.histPool.Get().([]float64)
	hist = hist[:bins]
	for i := range hist {
		hist[i] = 0
	}
	return hist
}

func (mc *metricsCalculator) putHist(hist []float64) {
	mc.histPool.Put(hist[:cap(hist)])
}

func rowOf(gray *image.Gray, y int) []uint8 {
	start := y * gray.Stride
	return gray.Pix[start : start+gray.Rect.Dx()]
}

// reflect101 mirrors an out-of-range index without repeating the edge
// sample (-1 -> 1, n -> n-2). Single-pixel axes clamp to 0.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	if i < 0 {
		return -i
	}
	if i >= n {
		return 2*n - 2 - i
	}
	return i
}
