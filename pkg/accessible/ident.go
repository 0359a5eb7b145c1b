package accessible

import "github.com/SampleEnvironment/secop-go/pkg/secoperr"

const maxIdentifierLength = 63

// ValidateIdentifier enforces the SECoP identifier rule:
// [A-Za-z_][A-Za-z0-9_]*, length <= 63.
func ValidateIdentifier(name string) error {
	if name == "" || len(name) > maxIdentifierLength {
		return secoperr.New(secoperr.InvalidName, "identifier %q: length must be 1..%d", name, maxIdentifierLength)
	}
	c := name[0]
	if !(c == '_' || 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z') {
		return secoperr.New(secoperr.InvalidName, "identifier %q: must start with a letter or underscore", name)
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !(c == '_' || 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9') {
			return secoperr.New(secoperr.InvalidName, "identifier %q: invalid character %q", name, c)
		}
	}
	return nil
}
