package fuzzy

import (
	"fmt"
	"math"

	"github.com/c360/sembridge/errors"
)

// Function is a compiled membership function mapping a sensor value to a
// degree of belonging in [0,1]. Functions are pure and never error;
// parameter validation happens once, when the function is built.
type Function func(x float64) float64

// Membership function shape names as they appear in sensor type
// configuration documents.
const (
	ShapeTriangular  = "triangular"
	ShapeTrapezoidal = "trapezoidal"
	ShapeGaussian    = "gaussian"
	ShapeSigmoid     = "sigmoid"
)

// Triangular builds a triangular membership function: zero outside [a,c],
// rising linearly to one at b, falling linearly after. Degenerate shoulders
// (a == b or b == c) collapse to steps. Parameters must satisfy a <= b <= c.
func Triangular(a, b, c float64) (Function, error) {
	if a > b || b > c {
		return nil, invalidShape("Triangular",
			fmt.Sprintf("a=%g b=%g c=%g violates a <= b <= c", a, b, c))
	}
	return func(x float64) float64 {
		switch {
		case x < a || x > c:
			return 0
		case x <= b:
			if b == a {
				return 1
			}
			return (x - a) / (b - a)
		default:
			if c == b {
				return 1
			}
			return (c - x) / (c - b)
		}
	}, nil
}

// Trapezoidal builds a trapezoidal membership function: zero outside [a,d],
// one on the plateau [b,c], linear ramps on the shoulders. Parameters must
// satisfy a <= b <= c <= d.
func Trapezoidal(a, b, c, d float64) (Function, error) {
	if a > b || b > c || c > d {
		return nil, invalidShape("Trapezoidal",
			fmt.Sprintf("a=%g b=%g c=%g d=%g violates a <= b <= c <= d", a, b, c, d))
	}
	return func(x float64) float64 {
		// The ramp branches are reachable only when their shoulder has
		// nonzero width, so the divisions below cannot be by zero.
		switch {
		case x < a || x > d:
			return 0
		case x < b:
			return (x - a) / (b - a)
		case x <= c:
			return 1
		default:
			return (d - x) / (d - c)
		}
	}, nil
}

// Gaussian builds a Gaussian membership function centered on mean. Sigma
// must be positive.
func Gaussian(mean, sigma float64) (Function, error) {
	if sigma <= 0 {
		return nil, invalidShape("Gaussian", fmt.Sprintf("sigma=%g must be positive", sigma))
	}
	denom := 2 * sigma * sigma
	return func(x float64) float64 {
		diff := x - mean
		return math.Exp(-(diff * diff) / denom)
	}, nil
}

// Sigmoid builds a sigmoid membership function 1/(1+exp(-a*(x-c))). The
// slope a controls steepness and sign controls direction; c is the
// crossover point where the degree is 0.5.
func Sigmoid(a, c float64) (Function, error) {
	return func(x float64) float64 {
		return 1 / (1 + math.Exp(-a*(x-c)))
	}, nil
}

// Compile builds a membership function from its configured shape name and
// parameter list. Unknown shapes and wrong parameter counts are
// configuration errors.
func Compile(shape string, params []float64) (Function, error) {
	switch shape {
	case ShapeTriangular:
		if len(params) != 3 {
			return nil, invalidShape("Compile",
				fmt.Sprintf("triangular needs 3 parameters, got %d", len(params)))
		}
		return Triangular(params[0], params[1], params[2])
	case ShapeTrapezoidal:
		if len(params) != 4 {
			return nil, invalidShape("Compile",
				fmt.Sprintf("trapezoidal needs 4 parameters, got %d", len(params)))
		}
		return Trapezoidal(params[0], params[1], params[2], params[3])
	case ShapeGaussian:
		if len(params) != 2 {
			return nil, invalidShape("Compile",
				fmt.Sprintf("gaussian needs 2 parameters, got %d", len(params)))
		}
		return Gaussian(params[0], params[1])
	case ShapeSigmoid:
		if len(params) != 2 {
			return nil, invalidShape("Compile",
				fmt.Sprintf("sigmoid needs 2 parameters, got %d", len(params)))
		}
		return Sigmoid(params[0], params[1])
	default:
		return nil, invalidShape("Compile", fmt.Sprintf("unknown function type %q", shape))
	}
}

func invalidShape(method, detail string) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrInvalidMembership, detail),
		"fuzzy", method, "parameter validation")
}
