package bot

import (
	"fmt"
	"net/url"
	"strconv"

	domerrors "github.com/garyellow/eyecare-linebot-go/internal/errors"
)

// MenuDiseaseLookup is the only menu id the postback router answers.
const MenuDiseaseLookup = 2

// DefaultDiseaseNumber is used when a lookup postback omits number.
const DefaultDiseaseNumber = 2

// PostbackCommand is the decoded form of "menu=2&type=3&number=2".
type PostbackCommand struct {
	Menu   int
	Type   string
	Number int
}

// Encode returns the query-string form, the inverse of ParsePostback.
func (c PostbackCommand) Encode() string {
	v := url.Values{}
	v.Set("menu", strconv.Itoa(c.Menu))
	if c.Type != "" {
		v.Set("type", c.Type)
	}
	if c.Number != 0 {
		v.Set("number", strconv.Itoa(c.Number))
	}
	return v.Encode()
}

// ParsePostback decodes URL query formatted postback data.
//
// menu is required. When menu selects the disease lookup, type is required
// and number defaults to DefaultDiseaseNumber. Unknown or repeated keys and
// malformed integers are rejected. Every error matches domerrors.ErrDecode.
func ParsePostback(data string) (PostbackCommand, error) {
	var cmd PostbackCommand

	values, err := url.ParseQuery(data)
	if err != nil {
		return cmd, fmt.Errorf("%w: %w", domerrors.ErrDecode, err)
	}

	for key, vals := range values {
		switch key {
		case "menu", "type", "number":
		default:
			return cmd, fmt.Errorf("%w: unknown key %q", domerrors.ErrDecode, key)
		}
		if len(vals) != 1 {
			return cmd, fmt.Errorf("%w: key %q given %d times", domerrors.ErrDecode, key, len(vals))
		}
	}

	if !values.Has("menu") {
		return cmd, fmt.Errorf("%w: missing menu", domerrors.ErrDecode)
	}
	if cmd.Menu, err = strconv.Atoi(values.Get("menu")); err != nil {
		return cmd, fmt.Errorf("%w: menu: %w", domerrors.ErrDecode, err)
	}

	cmd.Type = values.Get("type")
	if values.Has("number") {
		if cmd.Number, err = strconv.Atoi(values.Get("number")); err != nil {
			return cmd, fmt.Errorf("%w: number: %w", domerrors.ErrDecode, err)
		}
	}

	if cmd.Menu == MenuDiseaseLookup {
		if cmd.Type == "" {
			return cmd, fmt.Errorf("%w: missing type", domerrors.ErrDecode)
		}
		if !values.Has("number") {
			cmd.Number = DefaultDiseaseNumber
		}
	}
	return cmd, nil
}
