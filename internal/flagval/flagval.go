// Package flagval binds the primitive validators to pflag values so that a
// bad argument is rejected while the command line is being matched, before
// any processor runs. Values keep only the raw string: processors re-parse
// through the same validators, so both layers fail identically on the same
// input.
package flagval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cita-toolkit/citactl/internal/parse"
)

// Single is a validated single-value flag.
type Single struct {
	raw     string
	changed bool
	typ     string
	check   func(string) error
}

func (v *Single) Set(s string) error {
	if err := v.check(s); err != nil {
		return err
	}
	v.raw = s
	v.changed = true
	return nil
}

func (v *Single) String() string { return v.raw }
func (v *Single) Type() string   { return v.typ }

// Present reports whether the flag was supplied explicitly, ignoring any
// default value.
func (v *Single) Present() bool { return v.changed }

func NewAddress() *Single {
	return &Single{typ: "address", check: func(s string) error {
		_, err := parse.ParseAddress(s)
		return err
	}}
}

func NewH256() *Single {
	return &Single{typ: "h256", check: func(s string) error {
		_, err := parse.ParseH256(s)
		return err
	}}
}

func NewU64() *Single {
	return &Single{typ: "uint64", check: func(s string) error {
		_, err := parse.ParseU64(s)
		return err
	}}
}

func NewU256() *Single {
	return &Single{typ: "uint256", check: func(s string) error {
		_, err := parse.ParseU256(s)
		return err
	}}
}

// NewU32 validates a decimal 32-bit chain id.
func NewU32() *Single {
	return &Single{typ: "uint32", check: func(s string) error {
		if _, err := strconv.ParseUint(s, 10, 32); err != nil {
			return fmt.Errorf("parse chain id: %v", err)
		}
		return nil
	}}
}

// NewHeight defaults to the "latest" tag.
func NewHeight() *Single {
	return &Single{typ: "height", raw: parse.HeightLatest, check: func(s string) error {
		_, err := parse.ParseHeight(s)
		return err
	}}
}

func NewPrivKey() *Single {
	return &Single{typ: "privkey", check: parse.ValidatePrivKey}
}

// H256List is a repeatable flag collecting H256 values in input order.
type H256List struct {
	items []string
}

func (v *H256List) Set(s string) error {
	if _, err := parse.ParseH256(s); err != nil {
		return err
	}
	v.items = append(v.items, s)
	return nil
}

func (v *H256List) String() string {
	return "[" + strings.Join(v.items, ",") + "]"
}

func (v *H256List) Type() string { return "h256" }

// Values returns the raw values in the order they were supplied.
func (v *H256List) Values() []string {
	return append([]string(nil), v.items...)
}
