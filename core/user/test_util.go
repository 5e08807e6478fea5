package user

import (
	"context"

	"github.com/RouahImad/Project-epg-sub000/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service that sends its mails synchronously.
func NewServiceMock(db core.DB, repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &serviceMock{
		service: service{
			db:      db,
			repo:    repo,
			mailSvc: mailSvc,
			conf:    conf,
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
