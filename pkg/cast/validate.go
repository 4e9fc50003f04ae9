package cast

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Validator is a named check run against a cast value. Check receives the value
// and the whole raw input the descriptor was resolved against. A non-nil error,
// including one produced by a panic, rejects the value.
type Validator struct {
	Name  string
	Check func(value, input any) error
}

// ErrRejected is the cause recorded when a predicate validator returns false.
var ErrRejected = errors.New("validator returned false")

// Rule builds a validator from an error-returning check.
func Rule(name string, check func(value, input any) error) Validator {
	return Validator{Name: name, Check: check}
}

// Predicate builds a validator from a boolean check; false rejects.
func Predicate(name string, ok func(value, input any) bool) Validator {
	return Validator{
		Name: name,
		Check: func(value, input any) error {
			if !ok(value, input) {
				return ErrRejected
			}
			return nil
		},
	}
}

var (
	tagValidatorOnce sync.Once
	tagValidator     *validator.Validate
)

func tags() *validator.Validate {
	tagValidatorOnce.Do(func() {
		tagValidator = validator.New()
	})
	return tagValidator
}

// Tag builds a validator from a go-playground/validator tag, such as "min=1,max=64"
// or "email". Tags apply to the value itself, so "min" is a length for strings and
// a bound for numbers.
func Tag(tag string) Validator {
	return Validator{
		Name: "tag:" + tag,
		Check: func(value, _ any) error {
			return tags().Var(value, tag)
		},
	}
}

// DisplayName returns the name used in errors and method descriptions.
func (v Validator) DisplayName() string {
	return v.name()
}

// name returns the validator's display name, falling back to the check function's
// symbol for anonymous validators.
func (v Validator) name() string {
	if v.Name != "" {
		return v.Name
	}
	if v.Check == nil {
		return "<nil>"
	}
	fn := runtime.FuncForPC(reflect.ValueOf(v.Check).Pointer())
	if fn == nil {
		return "<anonymous>"
	}
	full := fn.Name()
	if i := strings.LastIndexByte(full, '/'); i >= 0 {
		full = full[i+1:]
	}
	return full
}

// run executes the check, converting a rejection or panic into a cast error that
// names the validator and the rejected value.
func (v Validator) run(value, input any) (err error) {
	if v.Check == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = &Error{
				Reason:    ReasonValidator,
				Validator: v.name(),
				Value:     value,
				Cause:     fmt.Errorf("panic: %v", r),
			}
		}
	}()
	if cerr := v.Check(value, input); cerr != nil {
		return &Error{
			Reason:    ReasonValidator,
			Validator: v.name(),
			Value:     value,
			Cause:     cerr,
		}
	}
	return nil
}

func runValidators(vs []Validator, value, input any) error {
	for _, v := range vs {
		if err := v.run(value, input); err != nil {
			return err
		}
	}
	return nil
}
