package student

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/catalog"
)

type Student struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Username     string          `json:"username" db:"username"`
	FullName     string          `json:"full_name" db:"full_name"`
	Email        null.String     `json:"email" db:"email"`
	Groups       []catalog.Group `json:"groups" db:"-"`
	IsActive     bool            `json:"is_active" db:"is_active"`
	IsStaff      bool            `json:"is_staff" db:"is_staff"`
	IsSuperuser  bool            `json:"is_superuser" db:"is_superuser"`
	PasswordHash []byte          `json:"-" db:"password_hash"`
	DateJoined   time.Time       `json:"date_joined" db:"date_joined"` // UTC
	LastLogin    null.Time       `json:"last_login" db:"last_login"`   // UTC
}

func (s *Student) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s *Student) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(pwd))
}

func (s *Student) GroupIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.Groups))
	for _, g := range s.Groups {
		ids = append(ids, g.ID)
	}
	return ids
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	Username        string      `json:"username" validate:"required,max=150,alphanum_"`
	FullName        string      `json:"full_name" validate:"max=255"`
	Email           string      `json:"email" validate:"omitempty,email"`
	Password        string      `json:"password" validate:"required"`
	PasswordConfirm string      `json:"password_confirm" validate:"required,eqfield=Password"`
	IsStaff         bool        `json:"is_staff"`
	IsSuperuser     bool        `json:"is_superuser"`
	GroupIDs        []uuid.UUID `json:"groups"`
}

func (ns *NewStudent) Validate(ctx context.Context, validate Validator, svc *Service) error {
	ns.FullName = core.CleanString(ns.FullName)
	ns.Username = core.CleanString(ns.Username, true /* lower */)
	ns.Email = core.CleanString(ns.Email, true /* lower */)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, ns.Username, ns.Email)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
type UpdateStudent struct {
	FullName        string `json:"full_name" validate:"max=255"`
	Username        string `json:"username" validate:"omitempty,max=150,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	IsActive        *bool  `json:"is_active"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (us *UpdateStudent) Validate(ctx context.Context, validate Validator, orig Student, svc *Service) error {
	if name := core.CleanString(us.FullName); name != "" {
		us.FullName = name
	} else {
		us.FullName = orig.FullName
	}

	if uname := core.CleanString(us.Username, true /* lower */); uname != "" {
		us.Username = uname
	} else {
		us.Username = orig.Username
	}

	if email := core.CleanString(us.Email, true /* lower */); email != "" {
		us.Email = email
	} else {
		us.Email = orig.Email.String
	}

	if err := validate.Struct(us); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, us.Username, us.Email, orig.ID)
}

type ResetPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetPassword) Validate(validate Validator) error { return validate.Struct(rp) }

type RequestPasswordReset struct {
	Email string `json:"email" validate:"required,email"`
}

// Ordering maps the API ordering fields of students to their column.
var Ordering = map[string]string{
	"username":    "username",
	"full_name":   "full_name",
	"date_joined": "date_joined",
	"last_login":  "last_login",
}

func groupRef(id uuid.UUID) catalog.Group {
	return catalog.Group{ID: id}
}
