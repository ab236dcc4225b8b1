package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/guardexec/guardexec/shellquote"
)

var (
	_ pflag.Value = (*levelValue)(nil)
	_ pflag.Value = (*conventionValue)(nil)
)

// levelValue is a pflag.Value for the --log-level flag. It remembers
// whether it was set so the flag can beat the configured level only when
// the user actually passed it.
type levelValue struct {
	name string
	set  bool
}

func (v *levelValue) String() string {
	return v.name
}

func (v *levelValue) Set(raw string) error {
	name := strings.ToLower(strings.TrimSpace(raw))
	switch name {
	case "debug", "verbose", "info", "warn", "error":
		v.name = name
		v.set = true
		return nil
	default:
		return fmt.Errorf("unknown log level %q (expected debug, verbose, info, warn or error)", raw)
	}
}

func (v *levelValue) Type() string {
	return "level"
}

// conventionValue is a pflag.Value for the --convention flag. The zero
// value means the host platform's convention.
type conventionValue struct {
	convention shellquote.Convention
	set        bool
}

func (v *conventionValue) String() string {
	if !v.set {
		return ""
	}
	return v.convention.String()
}

func (v *conventionValue) Set(raw string) error {
	c, err := shellquote.ParseConvention(raw)
	if err != nil {
		return err
	}
	v.convention = c
	v.set = true
	return nil
}

func (v *conventionValue) Type() string {
	return "convention"
}

// Value returns the selected convention, falling back to the host's.
func (v *conventionValue) Value() shellquote.Convention {
	if !v.set {
		return shellquote.HostConvention()
	}
	return v.convention
}
