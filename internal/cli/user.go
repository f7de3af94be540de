package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/skyoffice-server/internal/auth"
	"github.com/vovakirdan/skyoffice-server/internal/config"
	"github.com/vovakirdan/skyoffice-server/internal/store/sqlite"
)

// UserOptions holds flags shared by the user commands.
type UserOptions struct {
	*RootOptions
	Database string
}

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UserOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage office accounts",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database")

	cmd.AddCommand(newUserCreateCommand(opts))
	cmd.AddCommand(newUserImportCommand(opts))
	return cmd
}

func (o *UserOptions) authService(cmd *cobra.Command) (*auth.Service, func(), error) {
	cfg, _, err := o.load(cmd, config.Config{Database: config.DatabaseConfig{Path: o.Database}})
	if err != nil {
		return nil, nil, err
	}
	st, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	svc := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		TTL:      cfg.Auth.TokenTTL,
	})
	return svc, func() { _ = st.Close() }, nil
}

func newUserCreateCommand(opts *UserOptions) *cobra.Command {
	var reg auth.Registration

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Long: `Create an account that can log in with a password.

Example:
  skyoffice user create --username alice --password secret1 --avatar lucy --flow-type NPC`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// validate before touching the database
			if err := reg.Validate(); err != nil {
				return err
			}
			svc, closeStore, err := opts.authService(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			user, err := svc.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d, avatar %s, flow %s)\n",
				user.Username, user.ID, user.Avatar, user.FlowType)
			return nil
		},
	}

	cmd.Flags().StringVar(&reg.Username, "username", "", "username (3-32 characters)")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password (at least 6 characters)")
	cmd.Flags().StringVar(&reg.Email, "email", "", "email address")
	cmd.Flags().StringVar(&reg.Avatar, "avatar", "", "avatar texture ("+strings.Join(auth.Avatars, "|")+")")
	cmd.Flags().StringVar(&reg.FlowType, "flow-type", "", "how awards are announced (SYSTEM|NPC)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newUserImportCommand(opts *UserOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Create accounts from a CSV file",
		Long: `Create accounts from a CSV file with the header
  username,password,email,avatar,flow_type

Only username and password are required. Invalid rows are reported and
skipped; the command fails if any row failed.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			rows, err := readRegistrations(f)
			if err != nil {
				return err
			}

			svc, closeStore, err := opts.authService(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			out := cmd.OutOrStdout()
			failed := 0
			for i, reg := range rows {
				if _, err := svc.Register(cmd.Context(), reg); err != nil {
					failed++
					fmt.Fprintf(out, "row %d (%s): %v\n", i+2, reg.Username, err)
					continue
				}
			}
			fmt.Fprintf(out, "imported %d of %d users\n", len(rows)-failed, len(rows))
			if failed > 0 {
				return fmt.Errorf("%d rows failed", failed)
			}
			return nil
		},
	}
	return cmd
}

var errMissingColumn = errors.New("missing column")

// readRegistrations parses a CSV with a header row. Column order is free.
func readRegistrations(r io.Reader) ([]auth.Registration, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"username", "password"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %s", errMissingColumn, required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var regs []auth.Registration
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		regs = append(regs, auth.Registration{
			Username: field(rec, "username"),
			Password: field(rec, "password"),
			Email:    field(rec, "email"),
			Avatar:   field(rec, "avatar"),
			FlowType: field(rec, "flow_type"),
		})
	}
	return regs, nil
}
