// Package dataset embeds the reference DCE-DSC acquisition bundled with the
// tool: a population-averaged arterial input function and two measured
// signal-ratio curves sampled at 2 s resolution, together with the protocol
// scalars they were acquired with. The command-line runner and the
// end-to-end tests both run against these curves.
package dataset

// Protocol scalars of the embedded acquisition. Times are seconds,
// relaxivities 1/(s*mM), angles degrees.
const (
	// TemporalResolution is the sampling interval of both curves.
	TemporalResolution = 2.0

	// DCE acquisition: short-TR spoiled gradient echo.
	DCETR           = 0.0027
	DCEFlipAngleDeg = 25.0
	DCET10Tissue    = 1.98

	// DSC acquisition: long-TR echo-planar readout.
	DSCTR           = 1.5
	DSCTE           = 0.035
	DSCFlipAngleDeg = 60.0

	// Contrast agent and blood properties shared by both stages.
	ContrastR1      = 4.5
	ContrastR2Blood = 87.0
	Hematocrit      = 0.42
)

// Times returns the acquisition time grid for the first n samples.
func Times(n int) []float64 {
	t := make([]float64, n)
	for i := range t {
		t[i] = TemporalResolution * float64(i)
	}
	return t
}

// AIF returns a copy of the arterial plasma concentration curve in mM
// (100 samples). The bolus arrives at 20 s and is followed by a
// recirculation tail.
func AIF() []float64 {
	return clone(arterialInput)
}

// DCERatio returns a copy of the measured DCE signal-ratio curve
// (100 samples, aligned with AIF).
func DCERatio() []float64 {
	return clone(dceSignalRatio)
}

// DSCRatio returns a copy of the measured DSC signal-ratio curve
// (80 samples, aligned with the first 80 AIF samples).
func DSCRatio() []float64 {
	return clone(dscSignalRatio)
}

func clone(src []float64) []float64 {
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

var arterialInput = []float64{
	0, 0, 0, 0, 0,
	0, 0, 0, 0, 0,
	0, 0.437785097, 1.62441987, 3.13509281, 4.5738211,
	5.71153149, 6.46102005, 6.82759416, 6.86637447, 6.6523275,
	6.2618156, 5.76270475, 5.2101672, 4.64593657, 4.09943633,
	3.58975249, 3.12782762, 2.71853246, 2.3624518, 2.0573311,
	1.79919161, 1.58315261, 1.40401097, 1.25662889, 1.13617634,
	1.03826714, 0.959020382, 0.895071548, 0.843551757, 0.802048322,
	0.768556015, 0.741425272, 0.719311399, 0.701127176, 0.686000137,
	0.673235049, 0.662281585, 0.652706933, 0.644172883, 0.636416867,
	0.629236422, 0.622476573, 0.616019642, 0.609777094, 0.603683036,
	0.597689067, 0.591760223, 0.585871793, 0.580006839, 0.574154267,
	0.568307335, 0.562462506, 0.556618567, 0.550775964, 0.544936292,
	0.539101915, 0.533275682, 0.527460717, 0.521660263, 0.515877575,
	0.51011584, 0.504378123, 0.498667332, 0.492986198, 0.487337261,
	0.481722865, 0.476145162, 0.470606111, 0.465107491, 0.459650902,
	0.454237782, 0.448869409, 0.443546916, 0.4382713, 0.43304343,
	0.427864057, 0.422733823, 0.417653269, 0.412622843, 0.407642909,
	0.402713748, 0.397835574, 0.393008532, 0.388232705, 0.383508123,
	0.378834763, 0.374212558, 0.369641396, 0.36512113, 0.360651573,
}

var dceSignalRatio = []float64{
	0.999488239, 1.00102286, 0.999547808, 0.999369863, 0.998139964,
	0.999573396, 1.00222383, 1.00084829, 1.00207376, 1.00049781,
	1.00078954, 1.09744677, 1.35298568, 1.70191798, 2.06730843,
	2.4345743, 2.77728384, 3.10748441, 3.41218017, 3.67662445,
	3.90277113, 4.07827408, 4.22101094, 4.31219615, 4.3892004,
	4.43127271, 4.44063917, 4.46255577, 4.43905386, 4.42103482,
	4.37373998, 4.33602512, 4.29907177, 4.25832787, 4.22035211,
	4.17217496, 4.12128351, 4.07217988, 4.03118464, 4.0010753,
	3.94154158, 3.90713731, 3.86657402, 3.81070764, 3.7820459,
	3.75179933, 3.68819657, 3.66258218, 3.62670708, 3.5848399,
	3.55815117, 3.51873718, 3.47416381, 3.45589373, 3.42116279,
	3.38997697, 3.36078124, 3.32162665, 3.28863296, 3.24852869,
	3.23060793, 3.19285855, 3.16451163, 3.13051381, 3.10395992,
	3.07867159, 3.06221611, 3.01486019, 2.99164326, 2.97544543,
	2.95655598, 2.92583572, 2.88623023, 2.8579262, 2.84994313,
	2.81961773, 2.7937202, 2.7819737, 2.75950258, 2.73151025,
	2.70952025, 2.68837549, 2.67269836, 2.64594371, 2.62415717,
	2.60334654, 2.57175431, 2.56603988, 2.54424104, 2.52224521,
	2.49016292, 2.47761013, 2.46588428, 2.43412799, 2.42357861,
	2.41111992, 2.38193866, 2.37806414, 2.35549552, 2.3348982,
}

var dscSignalRatio = []float64{
	1.00064973, 1.00129966, 1.00024079, 1.00229132, 0.998676911,
	0.999170528, 1.00208337, 1.0000536, 0.998239072, 1.00189291,
	1.002931, 0.960240466, 0.899373918, 0.84735874, 0.794625531,
	0.745766941, 0.705299448, 0.665559469, 0.638753589, 0.612076875,
	0.594808878, 0.583446455, 0.575028934, 0.56905816, 0.565503049,
	0.564448027, 0.565343898, 0.568079585, 0.57059183, 0.575385242,
	0.580738538, 0.585659465, 0.592570886, 0.598630688, 0.606819016,
	0.611257685, 0.616757394, 0.623138267, 0.629760196, 0.636962497,
	0.641198735, 0.647807629, 0.65522741, 0.654826429, 0.661950629,
	0.668884029, 0.67409767, 0.678784512, 0.682676098, 0.688883045,
	0.693006514, 0.696444753, 0.705066901, 0.706573098, 0.709632715,
	0.714562958, 0.718604203, 0.723001738, 0.723230724, 0.730535832,
	0.736725258, 0.73745477, 0.742970291, 0.748328709, 0.751973438,
	0.756670888, 0.755524783, 0.761200391, 0.764802715, 0.769821063,
	0.774039913, 0.771634912, 0.780892221, 0.780282574, 0.786929266,
	0.786763485, 0.792615921, 0.797413213, 0.798406105, 0.802040511,
}
