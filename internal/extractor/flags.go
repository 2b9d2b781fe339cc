package extractor

import "strings"

// AccessFlags holds the access_flags word of a module or member.
type AccessFlags uint16

const (
	FlagPublic     AccessFlags = 0x0001
	FlagPrivate    AccessFlags = 0x0002
	FlagProtected  AccessFlags = 0x0004
	FlagStatic     AccessFlags = 0x0008
	FlagFinal      AccessFlags = 0x0010
	FlagSuper      AccessFlags = 0x0020 // modules; "synchronized" on methods
	FlagVolatile   AccessFlags = 0x0040 // fields; "bridge" on methods
	FlagTransient  AccessFlags = 0x0080 // fields; "varargs" on methods
	FlagNative     AccessFlags = 0x0100
	FlagInterface  AccessFlags = 0x0200
	FlagAbstract   AccessFlags = 0x0400
	FlagStrict     AccessFlags = 0x0800
	FlagSynthetic  AccessFlags = 0x1000
	FlagAnnotation AccessFlags = 0x2000
	FlagEnum       AccessFlags = 0x4000
	FlagModule     AccessFlags = 0x8000
)

var modifierNames = []struct {
	flag AccessFlags
	name string
}{
	{FlagPublic, "public"},
	{FlagPrivate, "private"},
	{FlagProtected, "protected"},
	{FlagStatic, "static"},
	{FlagFinal, "final"},
	{FlagAbstract, "abstract"},
	{FlagNative, "native"},
	{FlagSynthetic, "synthetic"},
}

// Has reports whether every bit of f is set.
func (a AccessFlags) Has(f AccessFlags) bool {
	return a&f == f
}

// Modifiers lists the source-level modifiers that are unambiguous for both
// modules and members.
func (a AccessFlags) Modifiers() []string {
	var out []string
	for _, m := range modifierNames {
		if a.Has(m.flag) {
			out = append(out, m.name)
		}
	}
	return out
}

// ParseModifier maps a modifier name back to its flag.
func ParseModifier(name string) (AccessFlags, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, m := range modifierNames {
		if m.name == name {
			return m.flag, true
		}
	}
	return 0, false
}

func kindOf(flags AccessFlags) ModuleKind {
	switch {
	case flags.Has(FlagAnnotation):
		return KindAnnotation
	case flags.Has(FlagInterface):
		return KindInterface
	case flags.Has(FlagEnum):
		return KindEnum
	default:
		return KindClass
	}
}
