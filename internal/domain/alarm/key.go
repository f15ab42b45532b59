package alarm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Key is the stable configuration identity of an alarm: alarm_<address>_<ordinal>.
type Key string

// ErrInvalidKey is returned when a configuration key cannot be parsed.
var ErrInvalidKey = errors.New("invalid alarm key")

// NewKey builds the canonical key for the alarm of type t on the point at address.
func NewKey(t Type, address int) Key {
	return Key(fmt.Sprintf("alarm_%d_%d", address, uint8(t)))
}

// String returns the key as text.
func (k Key) String() string { return string(k) }

// ParseKey extracts the alarm type and point address from a key.
// Besides the canonical alarm_<address>_<ordinal> form it accepts the legacy
// P<address>_<TYPE> form, so old configuration files can be migrated with
// NewKey(ParseKey(old)).
func ParseKey(s string) (Type, int, error) {
	s = strings.TrimSpace(s)

	switch {
	case strings.HasPrefix(s, "alarm_"):
		addrPart, ordPart, ok := strings.Cut(strings.TrimPrefix(s, "alarm_"), "_")
		if !ok {
			return 0, 0, fmt.Errorf("%q: %w", s, ErrInvalidKey)
		}

		address, err := strconv.Atoi(addrPart)
		if err != nil || address < 0 {
			return 0, 0, fmt.Errorf("%q: bad address: %w", s, ErrInvalidKey)
		}

		ordinal, err := strconv.Atoi(ordPart)
		if err != nil || ordinal < 0 || !Type(ordinal).Valid() {
			return 0, 0, fmt.Errorf("%q: bad type ordinal: %w", s, ErrInvalidKey)
		}

		return Type(ordinal), address, nil
	case strings.HasPrefix(s, "P"):
		addrPart, typePart, ok := strings.Cut(strings.TrimPrefix(s, "P"), "_")
		if !ok {
			return 0, 0, fmt.Errorf("%q: %w", s, ErrInvalidKey)
		}

		address, err := strconv.Atoi(addrPart)
		if err != nil || address < 0 {
			return 0, 0, fmt.Errorf("%q: bad address: %w", s, ErrInvalidKey)
		}

		t, err := ParseType(typePart)
		if err != nil {
			return 0, 0, fmt.Errorf("%q: %w", s, ErrInvalidKey)
		}

		return t, address, nil
	default:
		return 0, 0, fmt.Errorf("%q: %w", s, ErrInvalidKey)
	}
}

// CanonicalKey parses a key in either form and returns its canonical spelling.
func CanonicalKey(s string) (Key, error) {
	t, address, err := ParseKey(s)
	if err != nil {
		return "", err
	}

	return NewKey(t, address), nil
}
