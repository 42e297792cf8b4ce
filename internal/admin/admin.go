// Package admin implements the operator commands of the admin CLI: bootstrap
// a superuser and activate or deactivate accounts.
package admin

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/go-playground/validator/v10"
)

const usage = `usage: admin [flags] <command>

commands:
  createsuperuser      create an active superuser (interactive)
  activate <email>     allow the account to log in
  deactivate <email>   block the account`

var ErrUsage = errors.New(usage)

// UserService is the part of services.UserService the CLI drives.
type UserService interface {
	CreateSuperuser(ctx context.Context, email string, name *string, password string) (*models.User, error)
	SetActiveByEmail(ctx context.Context, email string, active bool) (*models.User, error)
}

type App struct {
	users    UserService
	reader   *bufio.Reader
	out      io.Writer
	validate *validator.Validate
}

func NewApp(us UserService, in io.Reader, out io.Writer) *App {
	return &App{
		users:    us,
		reader:   bufio.NewReader(in),
		out:      out,
		validate: validator.New(),
	}
}

// Run dispatches one command given as positional args.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch args[0] {
	case "createsuperuser":
		if len(args) != 1 {
			return ErrUsage
		}
		return a.CreateSuperuser(ctx)
	case "activate", "deactivate":
		if len(args) != 2 {
			return ErrUsage
		}
		return a.SetActive(ctx, args[1], args[0] == "activate")
	default:
		return ErrUsage
	}
}

func (a *App) CreateSuperuser(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	if err := a.validate.Var(email, "required,email,max=255"); err != nil {
		return fmt.Errorf("invalid email %q", email)
	}

	nameText, err := GetSimpleText(a.reader, "Name (optional)", a.out)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	var name *string
	if nameText != "" {
		if utf8.RuneCountInString(nameText) > 255 {
			return errors.New("name is longer than 255 characters")
		}
		name = &nameText
	}

	password, err := a.readNewPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	user, err := a.users.CreateSuperuser(ctx, email, name, string(password))
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			return fmt.Errorf("a user with email %s already exists", common.NormalizeEmail(email))
		}
		return err
	}

	fmt.Fprintf(a.out, "Superuser %s created (id %s)\n", user.Email, user.ID)
	return nil
}

func (a *App) readNewPassword() ([]byte, error) {
	password, err := GetPassword("Password", a.out)
	if err != nil {
		return nil, err
	}

	confirm, err := GetPassword("Password (again)", a.out)
	if err != nil {
		common.WipeByteArray(password)
		return nil, err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(password, confirm) {
		common.WipeByteArray(password)
		return nil, errors.New("passwords do not match")
	}

	if err := checkPassword(password); err != nil {
		common.WipeByteArray(password)
		return nil, err
	}

	return password, nil
}

// checkPassword applies the same bounds as the create-user endpoint.
func checkPassword(p []byte) error {
	n := utf8.RuneCount(p)
	switch {
	case n < 8:
		return errors.New("password must be at least 8 characters")
	case n > 40:
		return errors.New("password must be at most 40 characters")
	case len(p) > auth.MaxPasswordBytes:
		return fmt.Errorf("password must be at most %d bytes", auth.MaxPasswordBytes)
	}
	return nil
}

func (a *App) SetActive(ctx context.Context, email string, active bool) error {
	user, err := a.users.SetActiveByEmail(ctx, email, active)
	if err != nil {
		if errors.Is(err, common.ErrAccountNotFound) {
			return fmt.Errorf("no user with email %s", common.NormalizeEmail(email))
		}
		return err
	}

	state := "deactivated"
	if user.IsActive {
		state = "activated"
	}
	fmt.Fprintf(a.out, "User %s %s\n", user.Email, state)
	return nil
}
