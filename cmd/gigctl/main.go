// gigctl is the operator CLI for gigbook: it hashes admin passwords and
// mints or checks tokens without a running server.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"gigbook/internal/auth"
	"gigbook/internal/config"
	"gigbook/internal/models"
)

const usage = `Usage: gigctl <command> [flags]

Commands:
  hash-password   print the stored hash of --password
  issue-token     mint an admin token for --email
  verify-token    check an admin token and print its email and expiry
  issue-identity  mint an identity JWT, for local testing

Run "gigctl <command> --help" for the flags of a command.
`

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, time.Now); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, now func() time.Time) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "hash-password":
		return hashPassword(rest, out)
	case "issue-token":
		return issueToken(rest, out, now)
	case "verify-token":
		return verifyToken(rest, out, now)
	case "issue-identity":
		return issueIdentity(rest, out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

// settings are the secrets a command may read from the config file.
type settings struct {
	configPath     string
	salt           string
	secret         string
	identitySecret string
}

func (s *settings) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.configPath, "config", "", "read salt and secrets from this config file")
}

// resolve fills unset values from the config file, when one was given.
func (s *settings) resolve() error {
	if s.configPath != "" {
		cfg, err := config.Load(s.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if s.salt == "" {
			s.salt = cfg.Auth.Salt
		}
		if s.secret == "" {
			s.secret = cfg.Auth.JWTSecret
		}
		if s.identitySecret == "" {
			s.identitySecret = cfg.Identity.JWTSecret
		}
	}
	if s.salt == "" {
		s.salt = config.DefaultSalt
	}
	if s.secret == "" {
		s.secret = s.salt
	}
	return nil
}

func parse(fs *pflag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, err
	}
	if extra := fs.Args(); len(extra) > 0 {
		return false, fmt.Errorf("unexpected argument: %s", extra[0])
	}
	return false, nil
}

func hashPassword(args []string, out io.Writer) error {
	var s settings
	var password string
	fs := pflag.NewFlagSet("hash-password", pflag.ContinueOnError)
	fs.StringVarP(&password, "password", "p", "", "password to hash")
	fs.StringVar(&s.salt, "salt", "", "salt (default: config or built-in salt)")
	s.addFlags(fs)
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	if password == "" {
		return errors.New("--password is required")
	}
	if err := s.resolve(); err != nil {
		return err
	}
	fmt.Fprintln(out, auth.HashPassword(password, s.salt))
	return nil
}

func issueToken(args []string, out io.Writer, now func() time.Time) error {
	var s settings
	var email string
	fs := pflag.NewFlagSet("issue-token", pflag.ContinueOnError)
	fs.StringVarP(&email, "email", "e", "", "admin email the token is issued to")
	fs.StringVar(&s.secret, "secret", "", "signing secret (default: config or salt)")
	s.addFlags(fs)
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return errors.New("--email is required")
	}
	if err := s.resolve(); err != nil {
		return err
	}
	token, err := auth.IssueToken(email, []byte(s.secret), now())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func verifyToken(args []string, out io.Writer, now func() time.Time) error {
	var s settings
	var token string
	fs := pflag.NewFlagSet("verify-token", pflag.ContinueOnError)
	fs.StringVarP(&token, "token", "t", "", "token to check")
	fs.StringVar(&s.secret, "secret", "", "signing secret (default: config or salt)")
	s.addFlags(fs)
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	if token == "" {
		return errors.New("--token is required")
	}
	if err := s.resolve(); err != nil {
		return err
	}
	p, err := auth.VerifyTokenAt(token, []byte(s.secret), now())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "valid: %s (expires %s)\n", p.Email, p.Expires().UTC().Format(time.RFC3339))
	return nil
}

func issueIdentity(args []string, out io.Writer) error {
	var s settings
	var claim models.IdentityClaim
	var ttl time.Duration
	fs := pflag.NewFlagSet("issue-identity", pflag.ContinueOnError)
	fs.StringVar(&claim.SubjectID, "sub", "", "subject id of the comedian")
	fs.StringVarP(&claim.Email, "email", "e", "", "email claim")
	fs.StringVarP(&claim.DisplayName, "name", "n", "", "display name claim")
	fs.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	fs.StringVar(&s.identitySecret, "secret", "", "identity provider secret (default: config)")
	s.addFlags(fs)
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	if claim.SubjectID == "" || claim.Email == "" {
		return errors.New("--sub and --email are required")
	}
	if err := s.resolve(); err != nil {
		return err
	}
	if s.identitySecret == "" {
		return errors.New("no identity secret: pass --secret or set identity.jwt_secret")
	}
	token, err := auth.NewIdentityVerifier([]byte(s.identitySecret)).Issue(claim, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}
