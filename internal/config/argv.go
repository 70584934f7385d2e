package config

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

// ParseCommand splits raw into argv with shell-like quoting. $NAME and
// ${NAME} expand from the environment outside single quotes, and an unquoted
// leading ~/ expands to the user's home. A blank or #-prefixed raw yields no argv.
func ParseCommand(raw string) (CommandConfig, error) {
	argv, err := splitCommand(raw)
	if err != nil {
		return CommandConfig{}, err
	}
	return CommandConfig{Raw: strings.TrimSpace(raw), Argv: argv}, nil
}

func mustParseCommand(raw string) CommandConfig {
	cmd, err := ParseCommand(raw)
	if err != nil {
		panic(err)
	}
	return cmd
}

func splitCommand(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil, nil
	}

	var (
		argv  []string
		word  strings.Builder
		open  bool
		quote rune
	)
	runes := []rune(raw)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote == '\'':
			if r == '\'' {
				quote = 0
				continue
			}
			word.WriteRune(r)
		case r == '\\':
			if i+1 == len(runes) {
				return nil, fmt.Errorf("command %q ends with a dangling escape", raw)
			}
			i++
			word.WriteRune(runes[i])
			open = true
		case r == '$':
			name, width := envReference(runes[i+1:])
			if width == 0 {
				word.WriteRune(r)
			} else {
				word.WriteString(os.Getenv(name))
				i += width
			}
			open = true
		case quote == '"':
			if r == '"' {
				quote = 0
				continue
			}
			word.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			open = true
		case unicode.IsSpace(r):
			if open {
				argv = append(argv, word.String())
				word.Reset()
				open = false
			}
		case r == '~' && !open && (i+1 == len(runes) || runes[i+1] == '/'):
			if home, err := os.UserHomeDir(); err == nil {
				word.WriteString(home)
			} else {
				word.WriteRune(r)
			}
			open = true
		default:
			word.WriteRune(r)
			open = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in command: %q", raw)
	}
	if open {
		argv = append(argv, word.String())
	}
	return argv, nil
}

// envReference reads a variable name following '$' and reports how many
// runes it spans. Zero width means the '$' is literal.
func envReference(rest []rune) (string, int) {
	if len(rest) == 0 {
		return "", 0
	}
	if rest[0] == '{' {
		for j := 1; j < len(rest); j++ {
			if rest[j] == '}' {
				if j == 1 {
					return "", 0
				}
				return string(rest[1:j]), j + 1
			}
		}
		return "", 0
	}

	n := 0
	for n < len(rest) && (rest[n] == '_' || unicode.IsLetter(rest[n]) || (n > 0 && unicode.IsDigit(rest[n]))) {
		n++
	}
	return string(rest[:n]), n
}
