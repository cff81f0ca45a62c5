// Package validate holds the form validators used by the settings and
// schedule editors. Validation is independent of the network path.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func Required(value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New("this field is required")
	}
	return nil
}

func Email(value string) error {
	if !emailRe.MatchString(value) {
		return errors.New("please enter a valid email address")
	}
	return nil
}

// Number parses value and checks the optional bounds (nil means unbounded).
func Number(value string, min, max *float64) error {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return errors.New("please enter a valid number")
	}
	if min != nil && n < *min {
		return fmt.Errorf("value must be at least %g", *min)
	}
	if max != nil && n > *max {
		return fmt.Errorf("value must be at most %g", *max)
	}
	return nil
}

func Positive(value string) error {
	zero := 0.0
	return Number(value, &zero, nil)
}
