package sqlite

import (
	"fmt"
	"net/url"
	"regexp"
)

// Protocol is the URI scheme served by this package.
const Protocol = "sqlite"

var tableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Location is a parsed sqlite://<path>?table=<name> URI.
type Location struct {
	Path  string
	Table string
}

// ParseURI parses sqlite:///abs/path.db?table=name or sqlite://rel.db?table=name.
func ParseURI(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("sqlite: parse uri: %w", err)
	}
	if u.Scheme != Protocol {
		return Location{}, fmt.Errorf("sqlite: unexpected scheme %q in %s", u.Scheme, raw)
	}
	loc := Location{Path: u.Host + u.Path, Table: u.Query().Get("table")}
	if loc.Path == "" {
		return Location{}, fmt.Errorf("sqlite: uri %s has no database path", raw)
	}
	if !tableNameRE.MatchString(loc.Table) {
		return Location{}, fmt.Errorf("sqlite: uri %s: invalid table name %q", raw, loc.Table)
	}
	return loc, nil
}

// URI renders the location back to its URI form.
func (l Location) URI() string {
	return Protocol + "://" + l.Path + "?table=" + url.QueryEscape(l.Table)
}
