package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/learnhub/backend/core/user"
)

// addUser creates a user.User, or updates the role and password of the one holding email.
func (cli *commandLine) addUser(name, email, role, pwd string) error {
	ctx := context.Background()
	r, err := user.ParseRole(role)
	if err != nil {
		return err
	}

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		nu := user.NewUser{Name: name, Email: email, Password: pwd, Role: r}
		if err = nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
			return err
		}
		_, err = cli.usrSvc.Create(ctx, nu)
		return err
	}

	sp := user.SetUserPassword{Email: usr.Email, Password: pwd}
	if err = sp.Validate(cli.validate); err != nil {
		return err
	}
	if err = usr.SetPassword(sp.Password); err != nil {
		return err
	}
	usr.Role = r
	usr.IsActive = true
	usr.UpdatedAt = time.Now().UTC()
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return err
}
