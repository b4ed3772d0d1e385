// Package compress turns camera images into JPEG payloads small enough to
// queue offline and upload over a weak connection.
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // decoder registration
	"image/jpeg"
	_ "image/png" // decoder registration
	"math"

	"golang.org/x/image/draw"
)

const (
	DefaultTargetKB     = 150
	DefaultMaxDimension = 1200

	// Qualities are percentages.
	startQuality   = 82
	floorQuality   = 45
	qualityStep    = 7
	downscaleReset = 75
	searchGuard    = 12
	minWidth       = 320
	minHeight      = 240
)

var downscales = []float64{0.90, 0.85}

// ErrUndecodable is returned when the input is not a supported image.
var ErrUndecodable = errors.New("compress: undecodable image")

// Options tune the pipeline. Zero values select the defaults.
type Options struct {
	TargetKB     int
	MaxDimension int
}

func (o Options) withDefaults() Options {
	if o.TargetKB <= 0 {
		o.TargetKB = DefaultTargetKB
	}
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	return o
}

// Result is the final encoding attempt.
type Result struct {
	Data    []byte
	SizeKB  int
	Width   int
	Height  int
	Quality float64
}

// Compress decodes raw, bounds its larger side to MaxDimension and searches
// for a JPEG encoding whose estimated size is within TargetKB. The quality
// search walks down from 0.82 in 0.07 steps to a 0.45 floor. If that is not
// enough the image is downscaled by 0.90 and then 0.85 (never below 320x240),
// restarting each search at 0.75. The last attempt is returned even when it
// is still over target.
func Compress(raw []byte, opts Options) (Result, error) {
	opts = opts.withDefaults()

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), opts.MaxDimension)
	canvas := render(src, w, h)

	res, err := search(canvas, startQuality, opts.TargetKB)
	if err != nil {
		return Result{}, err
	}

	for _, scale := range downscales {
		if res.SizeKB <= opts.TargetKB {
			break
		}
		w = max(minWidth, int(math.Round(float64(w)*scale)))
		h = max(minHeight, int(math.Round(float64(h)*scale)))
		canvas = render(canvas, w, h)

		res, err = search(canvas, downscaleReset, opts.TargetKB)
		if err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

func search(img image.Image, quality, targetKB int) (Result, error) {
	res, err := encode(img, quality)
	if err != nil {
		return Result{}, err
	}
	for guard := 0; res.SizeKB > targetKB && quality > floorQuality && guard < searchGuard; guard++ {
		quality = max(floorQuality, quality-qualityStep)
		if res, err = encode(img, quality); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

func encode(img image.Image, quality int) (Result, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return Result{}, fmt.Errorf("encode jpeg q=%d: %w", quality, err)
	}
	b := img.Bounds()
	return Result{
		Data:    buf.Bytes(),
		SizeKB:  SizeKB(buf.Len()),
		Width:   b.Dx(),
		Height:  b.Dy(),
		Quality: float64(quality) / 100,
	}, nil
}

// render scales src onto a w x h white canvas. Transparent regions come out
// white instead of black once encoded as JPEG.
func render(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

func fitWithin(w, h, limit int) (int, int) {
	long := max(w, h)
	if long <= limit {
		return w, h
	}
	scale := float64(limit) / float64(long)
	return max(1, int(math.Round(float64(w)*scale))), max(1, int(math.Round(float64(h)*scale)))
}
