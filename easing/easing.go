// Package easing provides progress curves for track updates.
//
// Every curve maps [0,1] onto [0,1] with f(0)=0 and f(1)=1. The named
// curves match their CSS counterparts so scene files can refer to them by
// name, including "cubic-bezier(x1, y1, x2, y2)" and "steps(n)".
package easing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Func is an easing curve.
type Func = func(p float64) float64

// Linear leaves progress untouched.
func Linear(p float64) float64 { return p }

var (
	Ease      = CubicBezier(0.25, 0.1, 0.25, 1.0)
	EaseIn    = CubicBezier(0.42, 0.0, 1.0, 1.0)
	EaseOut   = CubicBezier(0.0, 0.0, 0.58, 1.0)
	EaseInOut = CubicBezier(0.42, 0.0, 0.58, 1.0)
)

// QuadIn accelerates from zero.
func QuadIn(p float64) float64 { return p * p }

// QuadOut decelerates to zero.
func QuadOut(p float64) float64 { return p * (2 - p) }

// CubicInOut is symmetric cubic acceleration and deceleration.
func CubicInOut(p float64) float64 {
	if p < 0.5 {
		return 4 * p * p * p
	}
	q := 2*p - 2
	return 0.5*q*q*q + 1
}

// SineInOut follows half a cosine wave.
func SineInOut(p float64) float64 {
	return -(math.Cos(math.Pi*p) - 1) / 2
}

// Steps jumps in n equal increments, at the end of each interval.
func Steps(n int) Func {
	if n < 1 {
		n = 1
	}
	return func(p float64) float64 {
		if p >= 1 {
			return 1
		}
		if p <= 0 {
			return 0
		}
		return math.Floor(p*float64(n)) / float64(n)
	}
}

// CubicBezier returns the curve through (0,0), (x1,y1), (x2,y2), (1,1),
// solved for x with Newton iterations and a bisection fallback.
func CubicBezier(x1, y1, x2, y2 float64) Func {
	return func(p float64) float64 {
		if p <= 0 {
			return 0
		}
		if p >= 1 {
			return 1
		}

		u := p
		for i := 0; i < 8; i++ {
			dx := bezier(x1, x2, u) - p
			if math.Abs(dx) < 1e-7 {
				return bezier(y1, y2, clamp01(u))
			}
			d := bezierSlope(x1, x2, u)
			if math.Abs(d) < 1e-7 {
				break
			}
			u -= dx / d
		}

		lo, hi := 0.0, 1.0
		u = clamp01(u)
		for i := 0; i < 16; i++ {
			dx := bezier(x1, x2, u) - p
			if math.Abs(dx) < 1e-7 {
				break
			}
			if dx > 0 {
				hi = u
			} else {
				lo = u
			}
			u = (lo + hi) / 2
		}
		return bezier(y1, y2, u)
	}
}

func bezier(a, b, u float64) float64 {
	v := 1 - u
	return 3*v*v*u*a + 3*v*u*u*b + u*u*u
}

func bezierSlope(a, b, u float64) float64 {
	v := 1 - u
	return 3*v*v*a + 6*v*u*(b-a) + 3*u*u*(1-b)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

var named = map[string]Func{
	"linear":       Linear,
	"ease":         Ease,
	"ease-in":      EaseIn,
	"ease-out":     EaseOut,
	"ease-in-out":  EaseInOut,
	"quad-in":      QuadIn,
	"quad-out":     QuadOut,
	"cubic-in-out": CubicInOut,
	"sine-in-out":  SineInOut,
}

// ByName resolves a curve name. An empty name yields nil, meaning no
// easing.
func ByName(name string) (Func, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, nil
	}
	if f, ok := named[name]; ok {
		return f, nil
	}
	if args, ok := call(name, "cubic-bezier"); ok {
		v, err := floats(args, 4)
		if err != nil {
			return nil, fmt.Errorf("easing %q: %w", name, err)
		}
		if v[0] < 0 || v[0] > 1 || v[2] < 0 || v[2] > 1 {
			return nil, fmt.Errorf("easing %q: x control points must be in [0,1]", name)
		}
		return CubicBezier(v[0], v[1], v[2], v[3]), nil
	}
	if args, ok := call(name, "steps"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(args))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("easing %q: steps needs a positive integer", name)
		}
		return Steps(n), nil
	}
	return nil, fmt.Errorf("unknown easing %q", name)
}

func call(s, fn string) (string, bool) {
	if !strings.HasPrefix(s, fn+"(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	return s[len(fn)+1 : len(s)-1], true
}

func floats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d arguments, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
