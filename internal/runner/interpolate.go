package runner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// placeholderRe matches an action placeholder like {input}, {output[1]},
// {wildcards.sample} or {params.data_dir}.
var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_.]*(?:\[[0-9]+\])?)\}`)

// Interpolate substitutes the action placeholders of a shell command with the
// instantiation's concrete values. Doubled braces escape a literal brace.
// An unknown placeholder is an error rather than silently passing through to
// the shell.
func Interpolate(command string, inv *Invocation) (string, error) {
	const (
		openSentinel  = "\x00pgg-open\x00"
		closeSentinel = "\x00pgg-close\x00"
	)
	escaped := strings.ReplaceAll(command, "{{", openSentinel)
	escaped = strings.ReplaceAll(escaped, "}}", closeSentinel)

	var firstErr error
	out := placeholderRe.ReplaceAllStringFunc(escaped, func(m string) string {
		val, err := lookupPlaceholder(m[1:len(m)-1], inv)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return val
	})
	if firstErr != nil {
		return "", firstErr
	}

	out = strings.ReplaceAll(out, openSentinel, "{")
	out = strings.ReplaceAll(out, closeSentinel, "}")
	return out, nil
}

func lookupPlaceholder(name string, inv *Invocation) (string, error) {
	base, index, err := splitIndex(name)
	if err != nil {
		return "", err
	}

	switch {
	case base == "input":
		return pickPath(base, inv.Inputs, index)
	case base == "output":
		return pickPath(base, inv.Outputs, index)
	case base == "threads":
		return strconv.Itoa(inv.Threads), nil
	case base == "log":
		return inv.LogPath, nil
	case strings.HasPrefix(base, "wildcards."):
		key := strings.TrimPrefix(base, "wildcards.")
		if v, ok := inv.Wildcards[key]; ok {
			return v, nil
		}
		return "", fmt.Errorf("unknown wildcard {%s}", base)
	case strings.HasPrefix(base, "params."):
		key := strings.TrimPrefix(base, "params.")
		v, err := inv.Params.String(key)
		if err != nil {
			return "", fmt.Errorf("placeholder {%s}: %w", base, err)
		}
		return v, nil
	default:
		return "", fmt.Errorf("unknown placeholder {%s}", name)
	}
}

// splitIndex separates an optional [i] suffix from a placeholder name.
func splitIndex(name string) (string, int, error) {
	open := strings.IndexByte(name, '[')
	if open < 0 {
		return name, -1, nil
	}
	idx, err := strconv.Atoi(name[open+1 : len(name)-1])
	if err != nil {
		return "", 0, fmt.Errorf("bad index in placeholder {%s}", name)
	}
	return name[:open], idx, nil
}

func pickPath(base string, paths []string, index int) (string, error) {
	if index < 0 {
		return strings.Join(paths, " "), nil
	}
	if index >= len(paths) {
		return "", fmt.Errorf("placeholder {%s[%d]} out of range, have %d paths", base, index, len(paths))
	}
	return paths[index], nil
}
