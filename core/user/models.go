package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/learnhub/backend/core"
)

// Role is one of RoleStudent, RoleInstructor or RoleAdmin.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

var (
	AllRoles = []Role{RoleStudent, RoleInstructor, RoleAdmin}

	// roles anyone may pick when signing up
	SignupRoles = []Role{RoleStudent, RoleInstructor}

	rolePriorities = map[Role]int{
		RoleAdmin:      30,
		RoleInstructor: 20,
		RoleStudent:    10,
	}

	Roles = []RoleInfo{
		{Name: "Student", Value: RoleStudent},
		{Name: "Instructor", Value: RoleInstructor},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func (r Role) Valid() bool {
	_, ok := rolePriorities[r]
	return ok
}

// AllowedAtSignup reports whether anyone may pick r when signing up.
func (r Role) AllowedAtSignup() bool {
	for _, sr := range SignupRoles {
		if sr == r {
			return true
		}
	}
	return false
}

func (r Role) Priority() int {
	return rolePriorities[r]
}

// ParseRole returns the Role named by s, or an error when s is not a known role.
func ParseRole(s string) (Role, error) {
	r := Role(core.CleanString(s, true /* lower */))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`           // UTC
	UpdatedAt    time.Time `json:"updatedAt"`           // UTC
	LastLogin    time.Time `json:"lastLogin,omitempty"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool      { return u.Role == RoleAdmin }
func (u *User) IsInstructor() bool { return u.Role == RoleInstructor }
func (u *User) IsStudent() bool    { return u.Role == RoleStudent }

// CanTeach reports whether the user may create and manage courses.
func (u *User) CanTeach() bool { return u.IsInstructor() || u.IsAdmin() }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"omitempty,eqfield=Password"`
	Role            Role   `json:"role" validate:"omitempty,role"`

	// SelfSignup restricts Role to SignupRoles.
	SelfSignup bool `json:"-"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = Role(core.CleanString(string(nu.Role), true /* lower */))
	if nu.Role == "" {
		nu.Role = RoleStudent
	}

	if err := validate.Struct(nu); err != nil {
		return err
	}
	if nu.SelfSignup && !nu.Role.AllowedAtSignup() {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: signupRoleText})
	}
	return svc.CheckUniqueness(ctx, nu.Email)
}

// SetUserPassword is used by the admin CLI to replace a user's password.
type SetUserPassword struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (sp *SetUserPassword) Validate(validate *validator.Validate) error {
	sp.Email = core.CleanString(sp.Email, true /* lower */)
	return validate.Struct(sp)
}
