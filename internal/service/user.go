package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/web-casa/aiui/internal/auth"
	"github.com/web-casa/aiui/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const minPasswordLength = 6

var validate = validator.New()

// ErrInvalidCredentials is returned by Authenticate for an unknown user or wrong password
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService manages accounts and their profiles
type UserService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB, log *zap.Logger) *UserService {
	return &UserService{db: db, log: log.With(zap.String("module", "user"))}
}

// NeedSetup reports whether no account exists yet
func (s *UserService) NeedSetup() bool {
	var count int64
	s.db.Model(&model.User{}).Count(&count)
	return count == 0
}

// Setup creates the first admin account. It fails once any account exists.
func (s *UserService) Setup(username, password string) (*model.User, error) {
	if !s.NeedSetup() {
		return nil, invalid("error.setup_done", "username", "Admin user already exists")
	}
	return s.Create(username, password, model.RoleAdmin)
}

// Authenticate checks a username/password pair
func (s *UserService) Authenticate(username, password string) (*model.User, error) {
	var user model.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// List returns all users
func (s *UserService) List() ([]model.User, error) {
	var users []model.User
	err := s.db.Order("id ASC").Find(&users).Error
	return users, err
}

// Get returns a single user by ID
func (s *UserService) Get(id uint) (*model.User, error) {
	var user model.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Create adds an account with a hashed password
func (s *UserService) Create(username, password, role string) (*model.User, error) {
	username = strings.TrimSpace(username)
	errs := fieldErrors{}
	if len(username) < 3 {
		errs.add("username", "Ensure this value has at least 3 characters.")
	}
	if len(password) < minPasswordLength {
		errs.add("password", fmt.Sprintf("Ensure this value has at least %d characters.", minPasswordLength))
	}
	if role == "" {
		role = model.RoleViewer
	}
	if role != model.RoleAdmin && role != model.RoleViewer {
		errs.add("role", "role must be 'admin' or 'viewer'")
	}
	if err := errs.err("error.user_invalid"); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&model.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		return nil, usernameTaken()
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &model.User{Username: username, Password: hash, Role: role}
	if err := s.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, usernameTaken()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.log.Info("user created", zap.String("username", username), zap.String("role", role))
	return user, nil
}

// Update changes a user's role and/or password. Empty values are left unchanged.
func (s *UserService) Update(id uint, password, role string) (*model.User, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if role != "" {
		if role != model.RoleAdmin && role != model.RoleViewer {
			return nil, invalid("error.user_invalid", "role", "role must be 'admin' or 'viewer'")
		}
		user.Role = role
	}
	if password != "" {
		if err := s.setPassword(user, password); err != nil {
			return nil, err
		}
	}

	if err := s.db.Save(user).Error; err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// Delete removes a user. Models, threads and items they created stay in
// place with no owner.
func (s *UserService) Delete(id, currentID uint) (*model.User, error) {
	if id == currentID {
		return nil, invalid("error.delete_self", "id", "cannot delete yourself")
	}
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{&model.AIModel{}, &model.ConversationThread{}, &model.ConversationItem{}} {
			if err := tx.Model(m).Where("created_by_id = ?", id).UpdateColumn("created_by_id", nil).Error; err != nil {
				return err
			}
			if err := tx.Model(m).Where("modified_by_id = ?", id).UpdateColumn("modified_by_id", nil).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.User{}, id).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}
	s.log.Info("user deleted", zap.String("username", user.Username))
	return user, nil
}

// UpdateProfile changes the personal fields of an account
func (s *UserService) UpdateProfile(id uint, firstName, lastName, email string) (*model.User, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	if email != "" {
		if err := validate.Var(email, "email"); err != nil {
			return nil, invalid("error.profile_invalid", "email", "Enter a valid email address.")
		}
	}

	user.FirstName = strings.TrimSpace(firstName)
	user.LastName = strings.TrimSpace(lastName)
	user.Email = email
	if err := s.db.Save(user).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// UpdateAddress replaces the four address lines of an account
func (s *UserService) UpdateAddress(id uint, lines [4]string) (*model.User, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	user.Address1 = strings.TrimSpace(lines[0])
	user.Address2 = strings.TrimSpace(lines[1])
	user.Address3 = strings.TrimSpace(lines[2])
	user.Address4 = strings.TrimSpace(lines[3])
	if err := s.db.Save(user).Error; err != nil {
		return nil, fmt.Errorf("failed to update address: %w", err)
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one
func (s *UserService) ChangePassword(id uint, oldPassword, newPassword string) error {
	user, err := s.Get(id)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.Password, oldPassword) {
		return invalid("error.password_incorrect", "old_password", "Your old password was entered incorrectly. Please enter it again.")
	}
	if err := s.setPassword(user, newPassword); err != nil {
		return err
	}
	return s.db.Model(user).Update("password", user.Password).Error
}

func usernameTaken() *ValidationError {
	return invalid("error.username_exists", "username", "A user with that username already exists.")
}

func (s *UserService) setPassword(user *model.User, password string) error {
	if len(password) < minPasswordLength {
		return invalid("error.password_too_short", "password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = hash
	return nil
}
