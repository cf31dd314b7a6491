package ldif

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

// maxLineSize bounds a single physical line; certificates and photos in
// base64 exceed bufio's default.
const maxLineSize = 4 << 20

// line is a logical (unfolded) line and where it started.
type line struct {
	num  int
	text string
}

// Parse reads every record from r.
func Parse(r io.Reader) ([]Record, error) {
	groups, err := splitRecords(r)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(groups))
	for i, g := range groups {
		if i == 0 {
			g = skipVersion(g)
			if len(g) == 0 {
				continue
			}
		}
		rec, err := parseRecord(g)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ParseString is Parse for in-memory text.
func ParseString(s string) ([]Record, error) {
	return Parse(strings.NewReader(s))
}

// ParseDNList reads one DN per line, the input format of ldapdelete -f.
// Blank lines and comments are skipped.
func ParseDNList(s string) ([]string, error) {
	var dns []string
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		dns = append(dns, text)
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseError{Line: len(dns) + 1, Msg: err.Error()}
	}
	return dns, nil
}

// HasRecords reports whether s contains at least one "dn:" line, which
// distinguishes LDIF records from a bare DN list.
func HasRecords(s string) bool {
	for l := range strings.Lines(s) {
		if hasPrefixFold(l, "dn:") {
			return true
		}
	}
	return false
}

// splitRecords unfolds lines, drops comments and groups lines into records
// separated by blank lines.
func splitRecords(r io.Reader) ([][]line, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		groups    [][]line
		cur       []line
		inComment bool
		num       int
	)
	flush := func() {
		if len(cur) > 0 {
			groups = append(groups, cur)
			cur = nil
		}
	}

	for sc.Scan() {
		num++
		text := strings.TrimSuffix(sc.Text(), "\r")

		switch {
		case strings.HasPrefix(text, " "):
			if inComment {
				continue
			}
			if len(cur) == 0 {
				return nil, parseErrorf(num, "continuation line without a preceding line")
			}
			cur[len(cur)-1].text += text[1:]
		case strings.HasPrefix(text, "#"):
			inComment = true
		case strings.TrimSpace(text) == "":
			inComment = false
			flush()
		default:
			inComment = false
			cur = append(cur, line{num: num, text: text})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, parseErrorf(num+1, "%v", err)
	}
	flush()
	return groups, nil
}

func skipVersion(g []line) []line {
	if len(g) > 0 && hasPrefixFold(g[0].text, "version:") {
		return g[1:]
	}
	return g
}

func parseRecord(g []line) (Record, error) {
	name, dn, err := parseAttrLine(g[0])
	if err != nil {
		return Record{}, err
	}
	if !strings.EqualFold(name, "dn") {
		return Record{}, parseErrorf(g[0].num, "record must start with dn, got %q", name)
	}
	rec := Record{Line: g[0].num, DN: dn}
	rest := g[1:]

	for len(rest) > 0 && hasPrefixFold(rest[0].text, "control:") {
		rest = rest[1:]
	}

	if len(rest) > 0 && hasPrefixFold(rest[0].text, "changetype:") {
		_, ct, err := parseAttrLine(rest[0])
		if err != nil {
			return Record{}, err
		}
		switch strings.ToLower(ct) {
		case "add":
			rec.ChangeType = ChangeAdd
		case "delete":
			rec.ChangeType = ChangeDelete
		case "modify":
			rec.ChangeType = ChangeModify
		case "modrdn", "moddn":
			rec.ChangeType = ChangeModDN
		default:
			return Record{}, parseErrorf(rest[0].num, "unknown changetype %q", ct)
		}
		rest = rest[1:]
	}

	switch rec.ChangeType {
	case ChangeNone, ChangeAdd:
		err = parseEntry(&rec, rest)
	case ChangeDelete:
		if len(rest) > 0 {
			err = parseErrorf(rest[0].num, "delete record for %q must not carry attributes", rec.DN)
		}
	case ChangeModify:
		err = parseModify(&rec, rest)
	case ChangeModDN:
		err = parseModDN(&rec, rest)
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func parseEntry(rec *Record, lines []line) error {
	if len(lines) == 0 {
		return parseErrorf(rec.Line, "entry %q has no attributes", rec.DN)
	}
	for _, l := range lines {
		name, value, err := parseAttrLine(l)
		if err != nil {
			return err
		}
		rec.Attributes = addValue(rec.Attributes, name, value)
	}
	return nil
}

func parseModify(rec *Record, lines []line) error {
	var cur *Modification
	for _, l := range lines {
		if l.text == "-" {
			if cur == nil {
				return parseErrorf(l.num, "separator without a modification")
			}
			rec.Changes = append(rec.Changes, *cur)
			cur = nil
			continue
		}

		name, value, err := parseAttrLine(l)
		if err != nil {
			return err
		}

		if cur == nil {
			op := ModOp(strings.ToLower(name))
			switch op {
			case ModAdd, ModDelete, ModReplace, ModIncrement:
			default:
				return parseErrorf(l.num, "unknown modify operation %q", name)
			}
			if value == "" {
				return parseErrorf(l.num, "modify operation %q names no attribute", name)
			}
			cur = &Modification{Op: op, Attribute: Attribute{Name: value}}
			continue
		}

		if !strings.EqualFold(name, cur.Name) {
			return parseErrorf(l.num, "attribute %q inside %s of %q", name, cur.Op, cur.Name)
		}
		cur.Values = append(cur.Values, value)
	}
	if cur != nil {
		rec.Changes = append(rec.Changes, *cur)
	}
	if len(rec.Changes) == 0 {
		return parseErrorf(rec.Line, "modify record for %q has no modifications", rec.DN)
	}
	return nil
}

func parseModDN(rec *Record, lines []line) error {
	seenDeleteOld := false
	for _, l := range lines {
		name, value, err := parseAttrLine(l)
		if err != nil {
			return err
		}
		switch strings.ToLower(name) {
		case "newrdn":
			rec.NewRDN = value
		case "deleteoldrdn":
			switch value {
			case "0":
				rec.DeleteOldRDN = false
			case "1":
				rec.DeleteOldRDN = true
			default:
				return parseErrorf(l.num, "deleteoldrdn must be 0 or 1, got %q", value)
			}
			seenDeleteOld = true
		case "newsuperior":
			rec.NewSuperior = value
		default:
			return parseErrorf(l.num, "unexpected %q in moddn record", name)
		}
	}
	if rec.NewRDN == "" || !seenDeleteOld {
		return parseErrorf(rec.Line, "moddn record for %q needs newrdn and deleteoldrdn", rec.DN)
	}
	return nil
}

// parseAttrLine splits "name: value", "name:: base64" and "name:< url".
func parseAttrLine(l line) (name, value string, err error) {
	i := strings.IndexByte(l.text, ':')
	if i <= 0 {
		return "", "", parseErrorf(l.num, "missing attribute name or colon in %q", l.text)
	}
	name = l.text[:i]
	if strings.ContainsAny(name, " \t") {
		return "", "", parseErrorf(l.num, "invalid attribute name %q", name)
	}
	rest := l.text[i+1:]

	switch {
	case strings.HasPrefix(rest, ":"):
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(rest[1:]))
		if err != nil {
			return "", "", parseErrorf(l.num, "bad base64 value for %s: %v", name, err)
		}
		return name, string(decoded), nil
	case strings.HasPrefix(rest, "<"):
		data, err := readURL(strings.TrimSpace(rest[1:]))
		if err != nil {
			return "", "", parseErrorf(l.num, "value of %s: %v", name, err)
		}
		return name, data, nil
	default:
		return name, strings.TrimLeft(rest, " "), nil
	}
}

// readURL loads a ":<" value. Only file URLs are supported.
func readURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	data, err := os.ReadFile(u.Path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
