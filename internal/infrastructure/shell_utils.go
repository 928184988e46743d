package infrastructure

import "strings"

// shell metacharacters that force quoting when a command line is rendered
// for logs. exec.Command itself never goes through a shell.
const shellSpecial = " \t'\"$`\\!*?[](){}|;<>&~#%\n\r"

// ShellEscape quotes s for safe display in a logged command line.
func ShellEscape(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, shellSpecial) {
		return s
	}

	var b strings.Builder
	b.WriteByte('\'')
	for _, c := range s {
		if c == '\'' {
			b.WriteString(`'"'"'`)
		} else {
			b.WriteRune(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// ShellEscapeCommand renders a binary and its arguments as one display-safe
// command line.
func ShellEscapeCommand(binary string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, ShellEscape(binary))
	for _, arg := range args {
		parts = append(parts, ShellEscape(arg))
	}
	return strings.Join(parts, " ")
}
