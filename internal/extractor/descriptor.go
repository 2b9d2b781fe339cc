package extractor

import (
	"fmt"
	"strings"
)

var primitiveNames = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
}

// ParseMethodDescriptor decodes "(I[Ljava/lang/String;)V" into display
// parameter names and the return type.
func ParseMethodDescriptor(desc string) (params []string, ret string, err error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, "", fmt.Errorf("method descriptor %q: missing '('", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		name, next, err := parseFieldType(desc, i)
		if err != nil {
			return nil, "", err
		}
		params = append(params, name)
		i = next
	}
	if i >= len(desc) {
		return nil, "", fmt.Errorf("method descriptor %q: missing ')'", desc)
	}
	ret, next, err := parseFieldType(desc, i+1)
	if err != nil {
		return nil, "", err
	}
	if next != len(desc) {
		return nil, "", fmt.Errorf("method descriptor %q: trailing characters", desc)
	}
	return params, ret, nil
}

// FieldTypeName decodes a single field descriptor, e.g. "[J" -> "long[]".
func FieldTypeName(desc string) (string, error) {
	name, next, err := parseFieldType(desc, 0)
	if err != nil {
		return "", err
	}
	if next != len(desc) {
		return "", fmt.Errorf("field descriptor %q: trailing characters", desc)
	}
	return name, nil
}

func parseFieldType(desc string, i int) (string, int, error) {
	dims := 0
	for i < len(desc) && desc[i] == '[' {
		dims++
		i++
	}
	if i >= len(desc) {
		return "", i, fmt.Errorf("descriptor %q: unexpected end", desc)
	}

	var name string
	switch c := desc[i]; c {
	case 'L':
		end := strings.IndexByte(desc[i:], ';')
		if end < 0 {
			return "", i, fmt.Errorf("descriptor %q: unterminated class type", desc)
		}
		name = BinaryName(desc[i+1 : i+end])
		i += end + 1
	default:
		prim, ok := primitiveNames[c]
		if !ok {
			return "", i, fmt.Errorf("descriptor %q: unknown type %q", desc, c)
		}
		name = prim
		i++
	}
	return name + strings.Repeat("[]", dims), i, nil
}

// BinaryName converts an internal name ("com/foo/Bar") to the dotted form.
func BinaryName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

// classConstantName converts the name stored in a Class constant. Array
// classes are stored as descriptors and become "elem[]" names.
func classConstantName(internal string) (string, error) {
	if strings.HasPrefix(internal, "[") {
		return FieldTypeName(internal)
	}
	return BinaryName(internal), nil
}
