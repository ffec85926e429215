package myaudio

import "math"

// Slaney mel scale: linear below 1 kHz, logarithmic above
const (
	melFSp       = 200.0 / 3.0
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp // 15
)

var melLogStep = math.Log(6.4) / 27.0

func hzToMel(hz float64) float64 {
	if hz >= melMinLogHz {
		return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
	}
	return hz / melFSp
}

func melToHz(mel float64) float64 {
	if mel >= melMinLogMel {
		return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
	}
	return mel * melFSp
}

// melBand is one triangular filter stored sparsely from its first non-zero bin
type melBand struct {
	start   int
	weights []float64
}

// melFilterBank maps a power spectrum of nFFT/2+1 bins onto mel bands
type melFilterBank struct {
	bands []melBand
	bins  int
}

// newMelFilterBank builds area-normalised triangular filters between 0 Hz and
// sampleRate/2.
func newMelFilterBank(sampleRate, nFFT, nMels int) *melFilterBank {
	bins := nFFT/2 + 1
	fmax := float64(sampleRate) / 2

	fftFreqs := make([]float64, bins)
	for i := range fftFreqs {
		fftFreqs[i] = fmax * float64(i) / float64(bins-1)
	}

	// nMels+2 edge frequencies evenly spaced in mel
	minMel, maxMel := hzToMel(0), hzToMel(fmax)
	edges := make([]float64, nMels+2)
	for i := range edges {
		edges[i] = melToHz(minMel + (maxMel-minMel)*float64(i)/float64(nMels+1))
	}

	fb := &melFilterBank{bands: make([]melBand, nMels), bins: bins}
	for m := range nMels {
		lowerWidth := edges[m+1] - edges[m]
		upperWidth := edges[m+2] - edges[m+1]
		enorm := 2.0 / (edges[m+2] - edges[m])

		first, last := -1, -1
		weights := make([]float64, bins)
		for k, f := range fftFreqs {
			lower := (f - edges[m]) / lowerWidth
			upper := (edges[m+2] - f) / upperWidth
			w := math.Max(0, math.Min(lower, upper))
			if w > 0 {
				if first < 0 {
					first = k
				}
				last = k
				weights[k] = w * enorm
			}
		}
		if first < 0 {
			// band narrower than one FFT bin
			continue
		}
		fb.bands[m] = melBand{start: first, weights: weights[first : last+1]}
	}
	return fb
}

// apply projects power onto the mel bands, writing into out.
func (fb *melFilterBank) apply(power, out []float64) {
	for m, band := range fb.bands {
		var sum float64
		for i, w := range band.weights {
			sum += w * power[band.start+i]
		}
		out[m] = sum
	}
}
