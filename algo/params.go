package algo

// Params holds the environment meta-parameters spec.md §4.3.1 names, which
// config.temperature_quality selects a preset for (see SPEC_FULL.md /
// config package).
type Params struct {
	TSLIMIT            float64 // s; timestamping jitter bound
	SKMScale            float64 // s; Simple Skew Model scale
	RateErrBound        float64 // s/s
	BestSKMRate         float64 // s/s
	OffsetRatio         float64
	PlocalQuality       float64
	PlocalWinRatio      float64
	InitPeriodEstimate  float64 // s/count, (0,1]
}

// DefaultParams mirrors the "good" temperature_quality preset.
func DefaultParams() Params {
	return Params{
		TSLIMIT:            1e-4,
		SKMScale:            1024,
		RateErrBound:        1e-6,
		BestSKMRate:         5e-8,
		OffsetRatio:         4,
		PlocalQuality:       5e-7,
		PlocalWinRatio:      4,
		InitPeriodEstimate:  1e-9,
	}
}

// Thresholds derived once per Params (spec.md §4.3.1).
type Thresholds struct {
	Eshift            float64
	Ep                float64
	EpQual            float64
	EpSanity          float64
	EplocalQual       float64
	EplocalSanity     float64
	Eoffset           float64
	EoffsetQual       float64
	EoffsetSanityMin  float64
	EoffsetSanityRate float64
}

// ComputeThresholds derives the error thresholds spec.md §4.3.1 defines from
// Params.
func ComputeThresholds(p Params) Thresholds {
	return Thresholds{
		Eshift:            10 * p.TSLIMIT,
		Ep:                3 * p.TSLIMIT,
		EpQual:            p.RateErrBound / 5,
		EpSanity:          3 * p.RateErrBound,
		EplocalQual:       p.PlocalQuality,
		EplocalSanity:     3 * p.RateErrBound,
		Eoffset:           p.OffsetRatio * p.TSLIMIT,
		EoffsetQual:       3 * p.OffsetRatio * p.TSLIMIT,
		EoffsetSanityMin:  100 * p.TSLIMIT,
		EoffsetSanityRate: 20 * p.RateErrBound,
	}
}
