package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"library-catalog/internal/catalog"
)

// readPassword reads CATALOG_PASSWORD, a hidden terminal prompt, or a line
// from stdin.
func (a *app) readPassword() (string, error) {
	if pw := a.getenv("CATALOG_PASSWORD"); pw != "" {
		return pw, nil
	}
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.errOut, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.errOut)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := a.readLine()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return line, nil
}

// readLine reads one line of input through a reader shared by every prompt.
func (a *app) readLine() (string, error) {
	if a.stdin == nil {
		a.stdin = bufio.NewReader(a.in)
	}
	line, err := a.stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// confirmer asks on the terminal unless yes is set.
func (a *app) confirmer(yes bool) catalog.Confirmer {
	if yes {
		return catalog.Always
	}
	return catalog.ConfirmFunc(func(prompt string) (bool, error) {
		fmt.Fprintf(a.errOut, "%s [y/N]: ", prompt)
		answer, err := a.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes", nil
	})
}
