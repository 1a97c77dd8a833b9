// Package cli is a small command-line framework: typed flags with long and
// short forms, prefix flags that collect values like -W<name>, and generated
// help sized to the terminal.
package cli

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/term"
)

type Value interface {
	String() string
	Set(string) error
	Get() any
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }
func (v *stringValue) Get() any           { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	val, err := strconv.ParseBool(s)
	if err != nil && s != "" {
		return fmt.Errorf("invalid boolean value '%s': %w", s, err)
	}
	*v.p = val || s == ""
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }
func (v *boolValue) Get() any       { return *v.p }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }
func (v *listValue) Get() any           { return *v.p }

type Flag struct {
	Name         string
	Shorthand    string
	Usage        string
	Value        Value
	DefValue     string
	ExpectedType string
}

type FlagSet struct {
	name          string
	flags         map[string]*Flag
	shorthands    map[string]*Flag
	specialPrefix map[string]*Flag
	args          []string
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:          name,
		flags:         make(map[string]*Flag),
		shorthands:    make(map[string]*Flag),
		specialPrefix: make(map[string]*Flag),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, expectedType string) {
	*p = value
	f.Var(&stringValue{p}, name, shorthand, usage, value, expectedType)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

// Special registers a prefix flag: every argument of the form -<prefix><text>
// appends <text> to the list.
func (f *FlagSet) Special(p *[]string, prefix, usage, expectedType string) {
	*p = []string{}
	f.Var(&listValue{p}, prefix, "", usage, "", expectedType)
	f.specialPrefix[prefix] = f.flags[prefix]
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, expectedType string) {
	if name == "" {
		panic("flag name cannot be empty")
	}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("flag redefined: %s", name))
	}
	flag := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, ExpectedType: expectedType}
	f.flags[name] = flag
	if shorthand != "" {
		if _, ok := f.shorthands[shorthand]; ok {
			panic(fmt.Sprintf("shorthand flag redefined: %s", shorthand))
		}
		f.shorthands[shorthand] = flag
	}
}

func (f *FlagSet) Parse(arguments []string) error {
	f.args = []string{}
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		if len(arg) < 2 || arg[0] != '-' {
			f.args = append(f.args, arg)
			continue
		}
		if arg == "--" {
			f.args = append(f.args, arguments[i+1:]...)
			break
		}
		name := strings.TrimLeft(arg, "-")
		var inlineValue string
		hasInline := false
		if eq := strings.IndexByte(name, '='); eq != -1 {
			name, inlineValue = name[:eq], name[eq+1:]
			hasInline = true
		}

		flag, ok := f.flags[name]
		if !ok {
			if sp := f.matchSpecial(arg); sp != nil {
				continue
			}
			if flag, ok = f.shorthands[name]; !ok {
				return fmt.Errorf("unknown flag: %s", arg)
			}
		}

		switch {
		case hasInline:
			if err := flag.Value.Set(inlineValue); err != nil {
				return err
			}
		default:
			if _, isBool := flag.Value.(*boolValue); isBool {
				if err := flag.Value.Set(""); err != nil {
					return err
				}
				continue
			}
			if i+1 >= len(arguments) {
				return fmt.Errorf("flag needs an argument: %s", arg)
			}
			i++
			if err := flag.Value.Set(arguments[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// matchSpecial consumes an argument against the registered prefix flags,
// returning the flag that took it.
func (f *FlagSet) matchSpecial(arg string) *Flag {
	body := strings.TrimPrefix(arg, "-")
	for prefix, flag := range f.specialPrefix {
		if strings.HasPrefix(body, prefix) && len(body) > len(prefix) {
			flag.Value.Set(body[len(prefix):])
			return flag
		}
	}
	return nil
}

// App ties a flag set to an action and renders help pages.
type App struct {
	Name        string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	FlagSet     *FlagSet

	// Extra holds additional help text, such as the warning-flag listing,
	// appended after the options.
	Extra string

	Action func(args []string) error
}

func NewApp(name string) *App {
	return &App{Name: name, FlagSet: NewFlagSet(name)}
}

func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information.")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintf(os.Stderr, "Usage: %s %s\n", a.Name, a.Synopsis)
		return err
	}
	if help {
		a.writeHelp(os.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

func (a *App) writeHelp(w *os.File) {
	width := 80
	if tw, _, err := term.GetSize(int(w.Fd())); err == nil && tw > 40 {
		width = tw
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, a.Synopsis)
	if a.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(wrap(a.Description, width, ""))
		sb.WriteString("\n")
	}

	names := make([]string, 0, len(a.FlagSet.flags))
	for name := range a.FlagSet.flags {
		names = append(names, name)
	}
	sort.Strings(names)

	maxHead := 0
	heads := make(map[string]string, len(names))
	for _, name := range names {
		flag := a.FlagSet.flags[name]
		head := "-" + flag.Name
		if flag.Shorthand != "" {
			head = "-" + flag.Shorthand + ", " + head
		}
		if flag.ExpectedType != "" {
			head += " <" + flag.ExpectedType + ">"
		}
		heads[name] = head
		if len(head) > maxHead {
			maxHead = len(head)
		}
	}

	sb.WriteString("\nOptions:\n")
	for _, name := range names {
		flag := a.FlagSet.flags[name]
		fmt.Fprintf(&sb, "  %-*s  %s", maxHead, heads[name], flag.Usage)
		if flag.DefValue != "" && flag.DefValue != "false" {
			fmt.Fprintf(&sb, " (default %s)", flag.DefValue)
		}
		sb.WriteString("\n")
	}

	if a.Extra != "" {
		sb.WriteString("\n")
		sb.WriteString(a.Extra)
	}
	if a.Repository != "" {
		fmt.Fprintf(&sb, "\nRepository: %s\n", a.Repository)
	}
	fmt.Fprint(w, sb.String())
}

// wrap reflows text to the given width with an optional hanging indent.
func wrap(text string, width int, indent string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var sb strings.Builder
	lineLen := 0
	for i, word := range words {
		if i > 0 && lineLen+1+len(word) > width {
			sb.WriteString("\n")
			sb.WriteString(indent)
			lineLen = len(indent)
		} else if i > 0 {
			sb.WriteString(" ")
			lineLen++
		}
		sb.WriteString(word)
		lineLen += len(word)
	}
	return sb.String()
}
