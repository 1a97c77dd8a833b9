package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml"
)

// Warning identifies a class of diagnostic. Every defect the indexer can
// report belongs to exactly one class, and each class can be silenced
// independently. Silencing a warning never changes how the input is parsed,
// only whether the message is printed.
type Warning int

const (
	WarnNoPrototype Warning = iota
	WarnNameCollision
	WarnShadow
	WarnDuplicateDecl
	WarnDuplicateProto
	WarnStaticAfterGlobal
	WarnProtoAfterDecl
	WarnStaticNoDecl
	WarnUntermString
	WarnPreprocDirective
	WarnIncompleteCall
	WarnIncompleteDecl
	WarnStructFieldCall
	WarnNestedFunction
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Warnings   map[Warning]Info
	WarningMap map[string]Warning
}

func NewConfig() *Config {
	cfg := &Config{
		Warnings:   make(map[Warning]Info),
		WarningMap: make(map[string]Warning),
	}

	warnings := map[Warning]Info{
		WarnNoPrototype:       {"no-prototype", true, "Warn when a function is called without a prototype or declaration in scope."},
		WarnNameCollision:     {"name-collision", true, "Warn when a name is used as both a function and a variable, type, or typedef."},
		WarnShadow:            {"shadow", true, "Warn when a local name shadows a function or function typedef in an outer scope."},
		WarnDuplicateDecl:     {"duplicate-decl", true, "Warn about duplicate function declarations."},
		WarnDuplicateProto:    {"duplicate-proto", true, "Warn about duplicate function prototypes."},
		WarnStaticAfterGlobal: {"static-after-global", true, "Warn when a static declaration follows a global prototype of the same function."},
		WarnProtoAfterDecl:    {"proto-after-decl", true, "Warn when a prototype appears after the function's declaration."},
		WarnStaticNoDecl:      {"static-no-decl", true, "Warn about static prototypes with no matching declaration at end of file."},
		WarnUntermString:      {"unterm-string", true, "Warn about unterminated string literals."},
		WarnPreprocDirective:  {"preproc-directive", true, "Warn about preprocessor directives left in the input."},
		WarnIncompleteCall:    {"incomplete-call", true, "Warn when a statement ends before a function call's argument list does."},
		WarnIncompleteDecl:    {"incomplete-decl", true, "Warn about incomplete function declarations, prototypes, and typedefs."},
		WarnStructFieldCall:   {"struct-field-call", true, "Warn when a function call is an element of a structured type."},
		WarnNestedFunction:    {"nested-function", true, "Warn about functions declared inside another function."},
	}

	cfg.Warnings = warnings
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}
	return cfg
}

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// applyFlag handles one warning flag with the leading "-W" removed, so
// "all", "no-all", "shadow", "no-shadow", and so on.
func (c *Config) applyFlag(flag string) error {
	name := flag
	enable := true
	if strings.HasPrefix(name, "no-") {
		name = strings.TrimPrefix(name, "no-")
		enable = false
	}

	if name == "all" {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return nil
	}

	w, ok := c.WarningMap[name]
	if !ok {
		return fmt.Errorf("unrecognized warning flag '-W%s'", flag)
	}
	c.SetWarning(w, enable)
	return nil
}

// ApplyWarningFlags applies -W flag bodies in two passes, blanket flags
// first, so "-Wall -Wno-shadow" works in either order.
func (c *Config) ApplyWarningFlags(flags []string) error {
	for _, f := range flags {
		if f == "all" || f == "no-all" {
			if err := c.applyFlag(f); err != nil {
				return err
			}
		}
	}
	for _, f := range flags {
		if f == "all" || f == "no-all" {
			continue
		}
		if err := c.applyFlag(f); err != nil {
			return err
		}
	}
	return nil
}

// tomlFile is the on-disk configuration shape:
//
//	[warnings]
//	shadow = false
//	no-prototype = true
type tomlFile struct {
	Warnings map[string]bool `toml:"warnings"`
}

// LoadFile reads warning settings from a TOML file. Settings from the file
// are applied before command-line flags, so flags win.
func (c *Config) LoadFile(path string) error {
	buff, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tf := &tomlFile{}
	if err := toml.Unmarshal(buff, tf); err != nil {
		return fmt.Errorf("malformed config file %s: %w", path, err)
	}
	for name, enabled := range tf.Warnings {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("config file %s names unknown warning '%s'", path, name)
		}
		c.SetWarning(w, enabled)
	}
	return nil
}

// DefaultConfigFile is loaded from the working directory when present and no
// explicit -config flag was given.
const DefaultConfigFile = "cindex.toml"
