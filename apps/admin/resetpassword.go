package main

import (
	"context"

	"github.com/learnhub/backend/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	sp := user.SetUserPassword{Email: email, Password: pwd}
	if err := sp.Validate(cli.validate); err != nil {
		return err
	}
	_, err := cli.usrSvc.SetPassword(context.Background(), sp)
	return err
}
