package student

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/urfu-lab/studyhub/core"
)

var (
	// errors
	ErrNotFound       = errors.New("student not found")
	ErrEmailExists    = errors.New("a student with this email already exists")
	ErrUsernameExists = errors.New("a student with this username already exists")
)

type (
	Repository interface {
		CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...uuid.UUID) error
		CreateStudent(ctx context.Context, st Student) (Student, error)
		QueryStudents(ctx context.Context, ordering []core.DBOrdering) ([]Student, error)
		GetStudentByID(ctx context.Context, id uuid.UUID) (Student, error)
		GetStudentByUsername(ctx context.Context, username string) (Student, error)
		GetStudentByEmail(ctx context.Context, email string) (Student, error)
		GetStudentByUsernameOrEmail(ctx context.Context, username string) (Student, error)
		// UpdateStudent saves every field of st but its groups and date joined.
		UpdateStudent(ctx context.Context, st Student) (Student, error)
		SetLastLogin(ctx context.Context, id uuid.UUID, t time.Time) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
		tokens  tokenGenerator
	}

	passwordResetData struct {
		Username string
		UID      string
		Token    string
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
		tokens:  tokenGenerator{secretKey: conf.SecretKey, timeout: conf.PasswordResetTimeoutDelta},
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string, excludedIDs ...uuid.UUID) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludedIDs...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	st := Student{
		Username:    ns.Username,
		FullName:    ns.FullName,
		Email:       null.NewString(ns.Email, ns.Email != ""),
		IsActive:    true,
		IsStaff:     ns.IsStaff,
		IsSuperuser: ns.IsSuperuser,
		DateJoined:  time.Now().UTC(),
	}
	for _, id := range ns.GroupIDs {
		st.Groups = append(st.Groups, groupRef(id))
	}
	if err := st.SetPassword(ns.Password); err != nil {
		return Student{}, err
	}
	return svc.repo.CreateStudent(ctx, st)
}

func (svc *Service) Query(ctx context.Context, ordering ...core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, core.OrderingFields(Ordering).Clean(ordering, core.DBOrdering{Field: "username", Ascending: true}))
}

func (svc *Service) GetByID(ctx context.Context, id uuid.UUID) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (Student, error) {
	return svc.repo.GetStudentByUsername(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Student, error) {
	return svc.repo.GetStudentByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (Student, error) {
	return svc.repo.GetStudentByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

// Authenticate returns the active student matching the credentials.
func (svc *Service) Authenticate(ctx context.Context, uname, pwd string) (Student, error) {
	st, err := svc.GetByUsername(ctx, uname)
	if err != nil {
		return Student{}, err
	}
	if !st.IsActive || st.CheckPassword(pwd) != nil {
		return Student{}, ErrNotFound
	}
	return st, nil
}

func (svc *Service) Update(ctx context.Context, orig Student, us UpdateStudent) (Student, error) {
	st := orig
	st.FullName = us.FullName
	st.Username = us.Username
	st.Email = null.NewString(us.Email, us.Email != "")
	if us.IsActive != nil {
		st.IsActive = *us.IsActive
	}
	if us.Password != "" {
		if err := st.SetPassword(us.Password); err != nil {
			return Student{}, err
		}
	}
	return svc.repo.UpdateStudent(ctx, st)
}

func (svc *Service) SetLastLogin(ctx context.Context, st *Student) error {
	now := time.Now().UTC()
	if err := svc.repo.SetLastLogin(ctx, st.ID, now); err != nil {
		return err
	}
	st.LastLogin = null.TimeFrom(now)
	return nil
}

// RequestPasswordReset mails a reset link to the student owning email. Unknown emails are ignored.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	st, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return err
	}
	return svc.sendPasswordResetMail(st)
}

func (svc *Service) sendPasswordResetMail(st Student) error {
	token, err := svc.tokens.makeToken(st)
	if err != nil {
		return err
	}
	data := passwordResetData{Username: st.Username, UID: EncodeUID(st), Token: token}
	msg := core.NewEmailMessage(svc.conf, "Password Reset", "password_reset", data, mail.Address{Name: st.FullName, Address: st.Email.String})
	svc.mailSvc.SendMessages(msg)
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetPassword) (Student, error) {
	invalidTokenErr := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})

	id, err := decodeUID(data.UID)
	if err != nil {
		return Student{}, invalidTokenErr
	}
	st, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return Student{}, invalidTokenErr
		}
		return Student{}, err
	}

	if err = svc.tokens.verifyToken(st, data.Token); err != nil {
		if err == errTokenExpired {
			return Student{}, core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
		}
		return Student{}, invalidTokenErr
	}

	if err = st.SetPassword(data.Password); err != nil {
		return Student{}, err
	}
	return svc.repo.UpdateStudent(ctx, st)
}
