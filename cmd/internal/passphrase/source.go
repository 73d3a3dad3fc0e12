package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source lazily resolves the passphrase protecting a cmd/actioncodectl
// encrypted Ed25519 keystore file. Resolution order mirrors the teacher's
// filesystem secret-backend convention (services/otc-gateway's
// OTC_SECRET_BACKEND=filesystem, which names a directory and reads a secret
// from a file rather than an inline env var): a "<envVar>_FILE" variable
// naming a file to read takes precedence over the bare "<envVar>" variable,
// which in turn takes precedence over an interactive terminal prompt. The
// resolved value is cached after the first successful retrieval so repeated
// Get calls reuse the same secret.
type Source struct {
	envVar string

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a passphrase source keyed on envVar (and its
// "<envVar>_FILE" counterpart).
func NewSource(envVar string) *Source {
	return &Source{envVar: strings.TrimSpace(envVar)}
}

// Get returns the cached passphrase or resolves it if this is the first
// call. Whitespace-only passphrases are rejected to avoid unprotected
// keystores.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			fromFile, ok, err := s.readFromFile()
			if err != nil {
				s.err = err
				return
			}
			if ok {
				s.value = fromFile
				return
			}

			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}

		if !term.IsTerminal(int(os.Stdin.Fd())) {
			if s.envVar != "" {
				s.err = fmt.Errorf("actioncodes keystore passphrase required; set %s, %s, or run interactively", s.envVar, s.fileEnvVar())
			} else {
				s.err = errors.New("actioncodes keystore passphrase required and no terminal available")
			}
			return
		}

		fmt.Fprint(os.Stderr, "Enter actioncodes keystore passphrase: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			s.err = fmt.Errorf("failed to read passphrase: %w", err)
			return
		}

		value := string(raw)
		if strings.TrimSpace(value) == "" {
			s.err = errors.New("actioncodes keystore passphrase cannot be empty")
			return
		}

		s.value = value
	})

	return s.value, s.err
}

func (s *Source) fileEnvVar() string {
	return s.envVar + "_FILE"
}

// readFromFile checks "<envVar>_FILE" for a path naming a file holding the
// passphrase, trimming all trailing carriage-return and newline characters
// the way a mounted container secret is typically written. ok is false (with a nil err) when
// the variable is unset, so callers fall through to the next source.
func (s *Source) readFromFile() (value string, ok bool, err error) {
	path, set := os.LookupEnv(s.fileEnvVar())
	if !set || strings.TrimSpace(path) == "" {
		return "", false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", s.fileEnvVar(), err)
	}

	trimmed := strings.TrimRight(string(data), "\r\n")
	if strings.TrimSpace(trimmed) == "" {
		return "", false, fmt.Errorf("%s names an empty secret file", s.fileEnvVar())
	}
	return trimmed, true, nil
}
