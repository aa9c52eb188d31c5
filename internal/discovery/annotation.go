package discovery

import (
	"bufio"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/dshills/hookwire/internal/hook/condition"
)

// parseAnnotations reads @-tags from a free-text comment block. found is
// false when the block carries no recognized tag.
func parseAnnotations(doc string) (d Descriptor, found bool, err error) {
	d = NewDescriptor("")

	sc := bufio.NewScanner(strings.NewReader(doc))
	for sc.Scan() {
		line := stripCommentMarker(sc.Text())
		if !strings.HasPrefix(line, "@") {
			continue
		}
		tag, rest, _ := strings.Cut(line[1:], " ")
		rest = strings.TrimSpace(rest)

		switch strings.ToLower(tag) {
		case "hook":
			d.Name = rest
		case "priority":
			p, perr := strconv.Atoi(rest)
			if perr != nil {
				return d, true, fmt.Errorf("%w: @priority %q", ErrInvalidDescriptor, rest)
			}
			d.Priority = p
		case "group":
			d.Group = rest
		case "description":
			d.Description = rest
		case "disabled":
			d.Disabled = rest == "" || rest == "true"
		case "enabled":
			d.Disabled = rest == "false"
		case "middleware":
			if rest == "" {
				return d, true, fmt.Errorf("%w: empty @middleware", ErrInvalidDescriptor)
			}
			d.Middleware = append(d.Middleware, parseMiddlewareSpec(rest))
		case "condition":
			c, cerr := condition.ParseExpression(rest)
			if cerr != nil {
				return d, true, fmt.Errorf("%w: @condition %q: %v", ErrInvalidDescriptor, rest, cerr)
			}
			d.Conditions = append(d.Conditions, c)
		default:
			continue
		}
		found = true
	}
	return d, found, nil
}

func stripCommentMarker(line string) string {
	line = strings.TrimSpace(line)
	for _, marker := range []string{"/**", "*/", "//", "--", "#", "*"} {
		line = strings.TrimSpace(strings.TrimPrefix(line, marker))
	}
	return line
}

// leadingComment returns the comment block at the top of a Lua script.
func leadingComment(src string) string {
	var b strings.Builder
	sc := bufio.NewScanner(strings.NewReader(src))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#!"):
			if b.Len() > 0 {
				return b.String()
			}
		case strings.HasPrefix(line, "--"):
			b.WriteString(line)
			b.WriteByte('\n')
		default:
			return b.String()
		}
	}
	return b.String()
}

// tagDescriptor reads the `hook:"..."` tag of the first Meta field of v.
func tagDescriptor(v any) (Descriptor, bool, error) {
	rt := reflect.TypeOf(v)
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return Descriptor{}, false, nil
	}

	metaType := reflect.TypeOf(Meta{})
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if f.Type != metaType {
			continue
		}
		tag, ok := f.Tag.Lookup("hook")
		if !ok {
			return Descriptor{}, false, nil
		}
		d, err := parseTag(tag)
		return d, true, err
	}
	return Descriptor{}, false, nil
}

// parseTag parses "name=a.b;priority=5;group=g;enabled=false;
// middleware=role roles=admin;condition=environment production".
func parseTag(tag string) (Descriptor, error) {
	d := NewDescriptor("")
	for _, part := range strings.Split(tag, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return d, fmt.Errorf("%w: tag part %q is not key=value", ErrInvalidDescriptor, part)
		}
		v = strings.TrimSpace(v)

		switch strings.TrimSpace(k) {
		case "name":
			d.Name = v
		case "priority":
			p, err := strconv.Atoi(v)
			if err != nil {
				return d, fmt.Errorf("%w: priority %q", ErrInvalidDescriptor, v)
			}
			d.Priority = p
		case "group":
			d.Group = v
		case "description":
			d.Description = v
		case "enabled":
			enabled, err := strconv.ParseBool(v)
			if err != nil {
				return d, fmt.Errorf("%w: enabled %q", ErrInvalidDescriptor, v)
			}
			d.Disabled = !enabled
		case "middleware":
			d.Middleware = append(d.Middleware, parseMiddlewareSpec(v))
		case "condition":
			c, err := condition.ParseExpression(v)
			if err != nil {
				return d, fmt.Errorf("%w: condition %q: %v", ErrInvalidDescriptor, v, err)
			}
			d.Conditions = append(d.Conditions, c)
		default:
			return d, fmt.Errorf("%w: unknown tag key %q", ErrInvalidDescriptor, k)
		}
	}
	return d, nil
}
