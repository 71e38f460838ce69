package handler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prn-tf/meridian/internal/domain"
)

// queryParser collects the first malformed query parameter.
type queryParser struct {
	values url.Values
	err    error
}

func newQueryParser(values url.Values) *queryParser {
	return &queryParser{values: values}
}

func (p *queryParser) fail(name, want string) {
	if p.err == nil {
		p.err = fmt.Errorf("query parameter %q must be %s", name, want)
	}
}

func (p *queryParser) String(name string) string {
	return strings.TrimSpace(p.values.Get(name))
}

// List splits a comma separated parameter, dropping blanks.
func (p *queryParser) List(name string) []string {
	raw := p.String(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Role parses an optional role filter. Empty means no filter.
func (p *queryParser) Role(name string) domain.Role {
	raw := p.String(name)
	if raw == "" {
		return ""
	}
	role, err := domain.ParseRole(raw)
	if err != nil {
		p.fail(name, "one of admin, moderator, user")
		return ""
	}
	return role
}

// State parses an optional user state filter. Empty means no filter.
func (p *queryParser) State(name string) domain.UserState {
	raw := p.String(name)
	if raw == "" {
		return ""
	}
	state, err := domain.ParseUserState(raw)
	if err != nil {
		p.fail(name, "one of active, inactive, pending, suspended")
		return ""
	}
	return state
}

func (p *queryParser) Int(name string, def int) int {
	raw := p.String(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(name, "an integer")
		return def
	}
	return n
}

func (p *queryParser) OptionalInt(name string) *int {
	if p.String(name) == "" {
		return nil
	}
	n := p.Int(name, 0)
	return &n
}

func (p *queryParser) Float(name string) (float64, bool) {
	raw := p.String(name)
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(name, "a number")
		return 0, false
	}
	return f, true
}

func (p *queryParser) OptionalBool(name string) *bool {
	raw := p.String(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(name, "a boolean")
		return nil
	}
	return &b
}

func (p *queryParser) OptionalTime(name string) *time.Time {
	raw := p.String(name)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		p.fail(name, "an RFC 3339 timestamp")
		return nil
	}
	return &t
}

func (p *queryParser) Err() error { return p.err }
