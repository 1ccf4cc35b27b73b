// Command f0track prints the pitch contour of a WAV file, one row per
// analysis frame.
//
// Usage:
//
//	f0track [flags] file.wav
//
// Examples:
//
//	f0track voice.wav
//	f0track -tta -interp voice.wav
//	f0track -extractor spectral -min 55 -max 1000 voice.wav
//	f0track -tta -shifts 0,-5,7 -penalty 8 voice.wav
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/unixpickle/wav"

	"github.com/CNChTu/MelPE/extract/spectral"
	"github.com/CNChTu/MelPE/extract/yin"
	"github.com/CNChTu/MelPE/pitch"
)

func main() {
	extractorName := flag.String("extractor", "yin", "pitch extractor: yin or spectral")
	frameSize := flag.Int("frame", 0, "analysis frame size in samples (0 = extractor default)")
	hopSize := flag.Int("hop", 0, "hop size in samples (0 = extractor default)")
	f0Min := flag.Float64("min", 0, "voicing floor in Hz (0 = extractor default)")
	f0Max := flag.Float64("max", 0, "output ceiling in Hz (0 = extractor default)")
	tta := flag.Bool("tta", false, "enable test-time augmentation over key shifts")
	shifts := flag.String("shifts", "0,-12,12", "augmentation key shifts in semitones")
	penalty := flag.Float64("penalty", pitch.DefaultUVPenaltyBase, "base unvoiced penalty for the ensemble decoder")
	interp := flag.Bool("interp", false, "interpolate F0 across unvoiced gaps")
	targetFrames := flag.Int("frames", 0, "resample output to this many frames (0 = off)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: f0track [flags] file.wav\n\n")
		fmt.Fprintf(os.Stderr, "Prints the per-frame pitch contour of a WAV file.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *extractorName, *frameSize, *hopSize, *f0Min, *f0Max,
		*tta, *shifts, *penalty, *interp, *targetFrames); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(path, extractorName string, frameSize, hopSize int, f0Min, f0Max float64,
	tta bool, shiftList string, penalty float64, interp bool, targetFrames int) error {
	sound, err := wav.ReadSoundFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	samples := make([]float64, len(sound.Samples()))
	for i, s := range sound.Samples() {
		samples[i] = float64(s)
	}

	sampleRate := float64(sound.SampleRate())

	ext, hop, err := buildExtractor(extractorName, frameSize, hopSize)
	if err != nil {
		return err
	}

	opts := []pitch.Option{
		pitch.WithF0Range(f0Min, f0Max),
		pitch.WithVoicingMask(),
		pitch.WithUVPenaltyBase(penalty),
	}

	if tta {
		keyShifts, err := parseShifts(shiftList)
		if err != nil {
			return err
		}

		opts = append(opts, pitch.WithAugmentation(), pitch.WithKeyShifts(keyShifts...))
	}

	if interp {
		opts = append(opts, pitch.WithInterpolateUnvoiced())
	}

	if targetFrames > 0 {
		opts = append(opts, pitch.WithTargetFrameCount(targetFrames))
	}

	trk, err := pitch.New(ext, opts...)
	if err != nil {
		return err
	}

	res, err := trk.Track([][]float64{samples}, sampleRate)
	if err != nil {
		return err
	}

	return print(res, sampleRate, hop, targetFrames > 0)
}

func buildExtractor(name string, frameSize, hopSize int) (pitch.Extractor, int, error) {
	switch name {
	case "yin":
		e := yin.New(yin.Config{FrameSize: frameSize, HopSize: hopSize})
		return e, e.HopSize(), nil
	case "spectral":
		e := spectral.New(spectral.Config{FrameSize: frameSize, HopSize: hopSize})
		return e, e.HopSize(), nil
	default:
		return nil, 0, fmt.Errorf("unknown extractor %q (use yin or spectral)", name)
	}
}

func parseShifts(list string) ([]float64, error) {
	parts := strings.Split(list, ",")
	out := make([]float64, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid key shift %q: %w", p, err)
		}

		out = append(out, v)
	}

	return out, nil
}

func print(res pitch.Result, sampleRate float64, hop int, resampled bool) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "Frame\tTime [s]\tF0 [Hz]\tVoiced\n"); err != nil {
		return err
	}

	f0 := res.F0[0]
	mask := res.Voicing[0]

	for t := range f0 {
		voiced := 1 - int(mask[t])

		// Frame times are only meaningful on the native frame grid.
		if resampled {
			if _, err := fmt.Fprintf(tw, "%d\t-\t%.2f\t%d\n", t, f0[t], voiced); err != nil {
				return err
			}

			continue
		}

		sec := float64(t*hop) / sampleRate
		if _, err := fmt.Fprintf(tw, "%d\t%.4f\t%.2f\t%d\n", t, sec, f0[t], voiced); err != nil {
			return err
		}
	}

	return tw.Flush()
}
