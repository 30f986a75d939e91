// Command authctl drives the token session API from a terminal. The access
// token is cached between runs; the refresh cookie lives only for the
// duration of one invocation.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tech-arch1tect/authsession/client"
	"golang.org/x/term"
)

var readPassword = term.ReadPassword

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func defaultCachePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".authctl-token.yaml"
	}
	return filepath.Join(dir, "authctl", "token.yaml")
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	baseURL := fs.String("url", envOr("AUTHCTL_URL", "http://localhost:5000/api"), "API base URL")
	cachePath := fs.String("cache", defaultCachePath(), "access token cache file")
	timeout := fs.Duration("timeout", 30*time.Second, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: authctl [flags] signup|login|me|logout")
	}

	agent, err := client.NewAgent(*baseURL,
		client.WithTokenCache(client.NewFileCache(*cachePath)),
		client.WithTimeout(*timeout),
		client.WithSessionExpired(func() {
			fmt.Fprintln(stdout, "session expired, please log in again")
		}),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	reader := bufio.NewReader(stdin)
	switch cmd := fs.Arg(0); cmd {
	case "signup":
		name, err := prompt(reader, stdout, "Name (optional)")
		if err != nil {
			return err
		}
		username, err := prompt(reader, stdout, "Username")
		if err != nil {
			return err
		}
		email, err := prompt(reader, stdout, "Email")
		if err != nil {
			return err
		}
		password, err := promptPassword(stdout)
		if err != nil {
			return err
		}
		resp, err := agent.Signup(ctx, client.SignupRequest{Name: name, Username: username, Email: email, Password: password})
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, resp.Msg)
	case "login":
		identifier, err := prompt(reader, stdout, "Username or email")
		if err != nil {
			return err
		}
		password, err := promptPassword(stdout)
		if err != nil {
			return err
		}
		resp, err := agent.Login(ctx, identifier, password)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, resp.Msg)
	case "me":
		user, err := agent.Me(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(user)
	case "logout":
		if err := agent.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Logged out successfully")
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func prompt(reader *bufio.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprintf(w, "%s: ", label)
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(w io.Writer) (string, error) {
	fmt.Fprint(w, "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
