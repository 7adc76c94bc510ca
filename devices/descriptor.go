package devices

import (
	"fmt"
	"math"
)

// Constraint bounds one command parameter. Min, Max and Step apply to
// numeric values; Allowed is an explicit value whitelist. When both are
// present a value must satisfy every configured restriction.
type Constraint struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Step    *float64 `json:"step,omitempty"`
	Allowed []any    `json:"allowed_values,omitempty"`
}

// stepTolerance absorbs float drift when checking step alignment.
const stepTolerance = 1e-9

// Validate reports malformed constraint configuration.
func (c Constraint) Validate() error {
	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		return fmt.Errorf("min %g above max %g", *c.Min, *c.Max)
	}
	if c.Step != nil && *c.Step <= 0 {
		return fmt.Errorf("step %g must be positive", *c.Step)
	}
	if c.Allowed != nil && len(c.Allowed) == 0 {
		return fmt.Errorf("allowed_values present but empty")
	}
	return nil
}

// Check reports whether value satisfies the constraint. The error describes
// the violation; the validator attaches its own classification.
func (c Constraint) Check(value any) error {
	if len(c.Allowed) > 0 {
		found := false
		for _, a := range c.Allowed {
			if valuesEqual(a, value) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("value %v not in allowed set", value)
		}
	}

	if c.Min == nil && c.Max == nil && c.Step == nil {
		return nil
	}

	num, ok := toFloat(value)
	if !ok {
		return fmt.Errorf("value %v is not numeric", value)
	}
	if c.Min != nil && num < *c.Min {
		return fmt.Errorf("value %g below minimum %g", num, *c.Min)
	}
	if c.Max != nil && num > *c.Max {
		return fmt.Errorf("value %g above maximum %g", num, *c.Max)
	}
	if c.Step != nil {
		base := 0.0
		if c.Min != nil {
			base = *c.Min
		}
		offset := math.Mod(num-base, *c.Step)
		if offset > stepTolerance && *c.Step-offset > stepTolerance {
			return fmt.Errorf("value %g not aligned to step %g", num, *c.Step)
		}
	}
	return nil
}

// Descriptor is the capability record for one controllable device. It is
// read-only to the pipeline; inventory management lives outside this
// system.
type Descriptor struct {
	DeviceID     string                `json:"device_id"`
	Name         string                `json:"name,omitempty"`
	Room         string                `json:"room,omitempty"`
	Critical     bool                  `json:"critical,omitempty"`
	Capabilities []string              `json:"capabilities"`
	Constraints  map[string]Constraint `json:"constraints,omitempty"`
}

// Supports reports whether the device accepts the command type.
func (d Descriptor) Supports(commandType string) bool {
	for _, c := range d.Capabilities {
		if c == commandType {
			return true
		}
	}
	return false
}

// Constraint returns the constraint for a parameter name, if one is
// configured. Unconstrained parameters pass validation unchecked.
func (d Descriptor) Constraint(param string) (Constraint, bool) {
	c, ok := d.Constraints[param]
	return c, ok
}

// Validate reports malformed descriptor configuration.
func (d Descriptor) Validate() error {
	if d.DeviceID == "" {
		return fmt.Errorf("device_id is empty")
	}
	if len(d.Capabilities) == 0 {
		return fmt.Errorf("device %q has no capabilities", d.DeviceID)
	}
	for _, capability := range d.Capabilities {
		if capability == "" {
			return fmt.Errorf("device %q has an empty capability", d.DeviceID)
		}
	}
	for param, c := range d.Constraints {
		if param == "" {
			return fmt.Errorf("device %q has a constraint with an empty parameter name", d.DeviceID)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("device %q parameter %q: %w", d.DeviceID, param, err)
		}
	}
	return nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
