package pitch

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNoExtractor indicates a tracker constructed without an extractor.
	ErrNoExtractor = errors.New("pitch: tracker requires an extractor")
	// ErrEmptyAudio indicates an empty audio batch.
	ErrEmptyAudio = errors.New("pitch: audio batch is empty")
	// ErrNoKeyShifts indicates augmentation with an empty key-shift list.
	ErrNoKeyShifts = errors.New("pitch: augmentation requires at least one key shift")
	// ErrNoVoicingFloor indicates that no F0 floor was configured and the
	// extractor reports no range to default from.
	ErrNoVoicingFloor = errors.New("pitch: no voicing floor configured")
)

// Defaults forwarded to the extractor and the ensemble decoder.
const (
	DefaultDecoderMode   = "local_argmax"
	DefaultThreshold     = 0.006
	DefaultUVPenaltyBase = 12.0
)

// defaultKeyShifts is the augmentation set used when none is configured.
func defaultKeyShifts() []float64 {
	return []float64{0, -12, 12}
}

type config struct {
	decoderMode      string
	threshold        float64
	f0Min            float64
	f0Max            float64
	interpolate      bool
	targetFrames     int
	voicingMask      bool
	augment          bool
	keyShifts        []float64
	uvPenaltyBase    float64
	unshiftedVoicing bool
}

func defaultConfig() config {
	return config{
		decoderMode:   DefaultDecoderMode,
		threshold:     DefaultThreshold,
		keyShifts:     defaultKeyShifts(),
		uvPenaltyBase: DefaultUVPenaltyBase,
	}
}

// Option configures a Tracker.
type Option func(*config)

// WithDecoderMode sets the decode-mode string forwarded to the extractor.
func WithDecoderMode(mode string) Option {
	return func(cfg *config) {
		if mode != "" {
			cfg.decoderMode = mode
		}
	}
}

// WithThreshold sets the confidence threshold forwarded to the extractor.
func WithThreshold(v float64) Option {
	return func(cfg *config) {
		if v > 0 {
			cfg.threshold = v
		}
	}
}

// WithF0Range sets the voicing floor and ceiling in Hz. A zero value keeps
// the extractor-reported default for that bound.
func WithF0Range(min, max float64) Option {
	return func(cfg *config) {
		if min > 0 {
			cfg.f0Min = min
		}

		if max > 0 {
			cfg.f0Max = max
		}
	}
}

// WithInterpolateUnvoiced fills unvoiced gaps by linear interpolation between
// neighboring voiced frames.
func WithInterpolateUnvoiced() Option {
	return func(cfg *config) { cfg.interpolate = true }
}

// WithTargetFrameCount resamples the output frame axis to n frames using
// nearest-neighbor index remapping.
func WithTargetFrameCount(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.targetFrames = n
		}
	}
}

// WithVoicingMask includes the unvoiced mask in the result.
func WithVoicingMask() Option {
	return func(cfg *config) { cfg.voicingMask = true }
}

// WithAugmentation enables test-time augmentation: one extraction per key
// shift, merged by the ensemble decoder.
func WithAugmentation() Option {
	return func(cfg *config) { cfg.augment = true }
}

// WithKeyShifts replaces the augmentation key shifts (default 0, -12, +12).
// The slice is copied; the caller's ordering is preserved until tracking
// orders it with OrderKeyShifts.
func WithKeyShifts(shifts ...float64) Option {
	return func(cfg *config) {
		cfg.keyShifts = append([]float64(nil), shifts...)
	}
}

// WithUVPenaltyBase sets the base unvoiced penalty of the ensemble decoder.
func WithUVPenaltyBase(v float64) Option {
	return func(cfg *config) {
		if v > 0 {
			cfg.uvPenaltyBase = v
		}
	}
}

// WithUnshiftedVoicing bases the voicing decision on the key-shift-0 estimate
// instead of the ensembled sequence when augmentation is enabled.
func WithUnshiftedVoicing() Option {
	return func(cfg *config) { cfg.unshiftedVoicing = true }
}

// Tracker turns raw extractor estimates into a final pitch track.
// A Tracker is stateless across Track calls and safe for concurrent use as
// long as its extractor is.
type Tracker struct {
	ext Extractor
	cfg config
}

// New creates a tracker around the given extractor.
func New(ext Extractor, opts ...Option) (*Tracker, error) {
	if ext == nil {
		return nil, ErrNoExtractor
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if cfg.augment && len(cfg.keyShifts) == 0 {
		return nil, ErrNoKeyShifts
	}

	return &Tracker{ext: ext, cfg: cfg}, nil
}

// Track estimates the pitch contour of a batch of mono waveforms.
func (tr *Tracker) Track(audio [][]float64, sampleRate float64) (Result, error) {
	if len(audio) == 0 {
		return Result{}, ErrEmptyAudio
	}

	req := Request{
		SampleRate:  sampleRate,
		DecoderMode: tr.cfg.decoderMode,
		Threshold:   tr.cfg.threshold,
	}

	var f0, unshifted Sequence

	if tr.cfg.augment {
		shifts := OrderKeyShifts(tr.cfg.keyShifts)

		estimates, err := tr.estimateAll(audio, req, shifts)
		if err != nil {
			return Result{}, err
		}

		hyps := make([]Hypothesis, len(shifts))
		for i, shift := range shifts {
			hyps[i] = Hypothesis{F0: estimates[i], KeyShift: shift}
			if shift == 0 {
				unshifted = estimates[i]
			}
		}

		f0, err = DecodeEnsemble(hyps, tr.cfg.uvPenaltyBase)
		if err != nil {
			return Result{}, err
		}
	} else {
		est, err := tr.estimate(audio, req, 0)
		if err != nil {
			return Result{}, err
		}

		unshifted = est
		f0 = est.Clone()
	}

	voicingSource := f0
	if tr.cfg.augment && tr.cfg.unshiftedVoicing {
		if unshifted == nil {
			est, err := tr.estimate(audio, req, 0)
			if err != nil {
				return Result{}, err
			}

			unshifted = est
		}

		voicingSource = unshifted
	}

	f0Min, f0Max, err := tr.voicingRange()
	if err != nil {
		return Result{}, err
	}

	unvoiced := make([][]bool, len(f0))
	for b := range f0 {
		unvoiced[b] = make([]bool, len(f0[b]))
		for t := range f0[b] {
			if voicingSource[b][t] < f0Min {
				unvoiced[b][t] = true
				f0[b][t] = 0
			}
		}
	}

	if tr.cfg.interpolate {
		f0 = FillGaps(unvoiced, f0)
	}

	if f0Max > 0 {
		for b := range f0 {
			for t, hz := range f0[b] {
				if hz > f0Max {
					f0[b][t] = f0Max
				}
			}
		}
	}

	if tr.cfg.targetFrames > 0 {
		for b := range f0 {
			f0[b] = resampleNearest(f0[b], tr.cfg.targetFrames)
		}
	}

	res := Result{F0: f0}
	if tr.cfg.voicingMask {
		res.Voicing = maskSequence(unvoiced, tr.cfg.targetFrames)
	}

	return res, nil
}

// estimateAll runs one extraction per key shift. The calls are independent
// and dispatched concurrently; results are collected in shift order.
func (tr *Tracker) estimateAll(audio [][]float64, req Request, shifts []float64) ([]Sequence, error) {
	out := make([]Sequence, len(shifts))
	errs := make([]error, len(shifts))

	var wg sync.WaitGroup
	for i, shift := range shifts {
		wg.Add(1)

		go func(i int, shift float64) {
			defer wg.Done()

			r := req
			r.KeyShift = shift
			out[i], errs[i] = tr.ext.Estimate(audio, r)
		}(i, shift)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("pitch: extraction at key shift %+g failed: %w", shifts[i], err)
		}
	}

	return out, nil
}

func (tr *Tracker) estimate(audio [][]float64, req Request, shift float64) (Sequence, error) {
	req.KeyShift = shift

	seq, err := tr.ext.Estimate(audio, req)
	if err != nil {
		return nil, fmt.Errorf("pitch: extraction at key shift %+g failed: %w", shift, err)
	}

	return seq, nil
}

// voicingRange resolves the effective F0 floor and ceiling, falling back to
// the extractor-reported range for unset bounds. A missing floor is a
// configuration error; a missing ceiling disables clamping.
func (tr *Tracker) voicingRange() (f0Min, f0Max float64, err error) {
	f0Min = tr.cfg.f0Min
	f0Max = tr.cfg.f0Max

	if f0Min <= 0 || f0Max <= 0 {
		if rr, ok := tr.ext.(RangeReporter); ok {
			rmin, rmax := rr.F0Range()
			if f0Min <= 0 {
				f0Min = rmin
			}

			if f0Max <= 0 {
				f0Max = rmax
			}
		}
	}

	if f0Min <= 0 {
		return 0, 0, ErrNoVoicingFloor
	}

	return f0Min, f0Max, nil
}

// OrderKeyShifts returns the shifts ordered by the magnitude key x for
// x >= 0 and -x/2 otherwise, so 0, -12, 12 for the default set (-12 keys
// as 6, below 12). The asymmetry deliberately ranks negative shifts ahead
// of positive ones of equal size; preserved as observed reference
// behavior. The input slice is not modified.
func OrderKeyShifts(shifts []float64) []float64 {
	out := append([]float64(nil), shifts...)
	sort.SliceStable(out, func(i, j int) bool {
		return shiftOrderKey(out[i]) < shiftOrderKey(out[j])
	})

	return out
}

func shiftOrderKey(x float64) float64 {
	if x >= 0 {
		return x
	}

	return -x / 2
}

// resampleNearest remaps row to the target length by nearest-neighbor index
// selection: out[i] = row[floor(i*len(row)/target)]. No values are
// interpolated.
func resampleNearest(row []float64, target int) []float64 {
	out := make([]float64, target)
	if len(row) == 0 {
		return out
	}

	for i := range out {
		out[i] = row[i*len(row)/target]
	}

	return out
}

func maskSequence(unvoiced [][]bool, targetFrames int) Sequence {
	mask := make(Sequence, len(unvoiced))
	for b, row := range unvoiced {
		mask[b] = make([]float64, len(row))
		for t, uv := range row {
			if uv {
				mask[b][t] = 1
			}
		}

		if targetFrames > 0 {
			mask[b] = resampleNearest(mask[b], targetFrames)
		}
	}

	return mask
}
