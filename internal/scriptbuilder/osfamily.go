package scriptbuilder

import (
	"fmt"
	"strings"
)

// OsFamily selects the shell dialect a script is rendered for.
type OsFamily int

const (
	Unix OsFamily = iota
	Windows
)

var osFamilyNames = map[OsFamily]string{
	Unix:    "unix",
	Windows: "windows",
}

func (f OsFamily) String() string {
	if name, ok := osFamilyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("OsFamily(%d)", int(f))
}

// ParseOsFamily accepts the lowercase or uppercase family name.
func ParseOsFamily(s string) (OsFamily, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for f, name := range osFamilyNames {
		if name == needle {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOsFamily, s)
}

func (f OsFamily) MarshalText() ([]byte, error) {
	if _, ok := osFamilyNames[f]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOsFamily, int(f))
	}
	return []byte(f.String()), nil
}

func (f *OsFamily) UnmarshalText(text []byte) error {
	parsed, err := ParseOsFamily(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
