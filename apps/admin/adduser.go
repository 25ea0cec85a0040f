package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core/user"
)

// addUser updates or creates an active user.User having role.
func (cli *commandLine) addUser(name, email, pwd, role string) (user.User, error) {
	ctx := context.Background()
	nu := user.NewUser{Name: name, Email: email, Password: pwd, Roles: []string{role}}
	if err := nu.Validate(cli.validate); err != nil {
		return user.User{}, err
	}

	usr, err := cli.usrSvc.GetByEmail(ctx, nu.Email)
	if errors.Is(err, user.ErrNotFound) {
		return cli.usrSvc.Create(ctx, nu)
	}
	if err != nil {
		return user.User{}, err
	}

	usr.Name = nu.Name
	if !usr.HasRole(nu.Roles[0]) {
		usr.Roles = append(usr.Roles, nu.Roles[0])
	}
	usr.IsActive = true
	if err = usr.SetPassword(nu.Password); err != nil {
		return user.User{}, err
	}
	return cli.usrRepo.UpdateUser(ctx, usr)
}
