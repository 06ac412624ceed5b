package service

import (
	"errors"
	"strings"

	"go-inventory-offline/internal/apperr"
	"go-inventory-offline/internal/gateway"
	"go-inventory-offline/internal/model"
	"go-inventory-offline/internal/repository"
	"go-inventory-offline/pkg/validator"

	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrUserNotFound        = errors.New("user not found")
	ErrWrongPassword       = errors.New("current password is incorrect")
	ErrNoSecurityQuestion  = errors.New("no security question set for this user")
	ErrWrongSecurityAnswer = errors.New("security answer is incorrect")
	ErrUsernameTaken       = errors.New("username already exists")
)

const MinPasswordLength = 6

type AuthService interface {
	Authenticate(username, password string) (*model.User, error)
	Register(req *RegisterRequest) (*model.User, error)
	ChangePassword(username, oldPassword, newPassword string) error
	SetSecurityQuestion(username, question, answer string) error
	SecurityQuestion(username string) (string, error)
	ResetPasswordWithAnswer(username, answer, newPassword string) error
	// ResetPassword sets a new password without the old one. Administrative use only.
	ResetPassword(username, newPassword string) error
}

type RegisterRequest struct {
	Username string `json:"username" validate:"notblank"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=admin staff"`
}

type authService struct {
	gw *gateway.Gateway
}

func NewAuthService(gw *gateway.Gateway) AuthService {
	return &authService{gw: gw}
}

func (s *authService) Authenticate(username, password string) (*model.User, error) {
	var user *model.User
	err := s.gw.Read(func(db *gorm.DB) error {
		var err error
		user, err = repository.NewUserRepo(db).FindByUsername(strings.TrimSpace(username))
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *authService) Register(req *RegisterRequest) (*model.User, error) {
	// 1. Validate request
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	user := &model.User{Username: strings.TrimSpace(req.Username), Role: req.Role}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, errors.New("failed to hash password")
	}

	err := s.gw.Transaction(func(tx *gorm.DB) error {
		users := repository.NewUserRepo(tx)

		// 2. Check if username already exists
		if _, err := users.FindByUsername(user.Username); err == nil {
			return ErrUsernameTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// 3. Save
		return users.Create(user)
	})
	if err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *authService) ChangePassword(username, oldPassword, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	return s.gw.Transaction(func(tx *gorm.DB) error {
		users := repository.NewUserRepo(tx)
		user, err := findUser(users, username)
		if err != nil {
			return err
		}

		if !user.CheckPassword(oldPassword) {
			return ErrWrongPassword
		}
		if err := user.SetPassword(newPassword); err != nil {
			return errors.New("failed to hash new password")
		}
		return users.UpdatePassword(user.ID, user.Password)
	})
}

func (s *authService) SetSecurityQuestion(username, question, answer string) error {
	if strings.TrimSpace(question) == "" {
		return apperr.Validation("question", "is required")
	}
	if model.NormalizeAnswer(answer) == "" {
		return apperr.Validation("answer", "is required")
	}
	return s.gw.Transaction(func(tx *gorm.DB) error {
		users := repository.NewUserRepo(tx)
		user, err := findUser(users, username)
		if err != nil {
			return err
		}
		if err := user.SetSecurityAnswer(question, answer); err != nil {
			return errors.New("failed to hash security answer")
		}
		return users.UpdateSecurity(user.ID, user.SecurityQuestion, user.SecurityAnswer)
	})
}

func (s *authService) SecurityQuestion(username string) (string, error) {
	var user *model.User
	err := s.gw.Read(func(db *gorm.DB) error {
		var err error
		user, err = findUser(repository.NewUserRepo(db), username)
		return err
	})
	if err != nil {
		return "", err
	}
	if !user.HasSecurityQuestion() {
		return "", ErrNoSecurityQuestion
	}
	return *user.SecurityQuestion, nil
}

func (s *authService) ResetPasswordWithAnswer(username, answer, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	return s.gw.Transaction(func(tx *gorm.DB) error {
		users := repository.NewUserRepo(tx)
		user, err := findUser(users, username)
		if err != nil {
			return err
		}
		if !user.HasSecurityQuestion() {
			return ErrNoSecurityQuestion
		}
		if !user.CheckSecurityAnswer(answer) {
			return ErrWrongSecurityAnswer
		}
		if err := user.SetPassword(newPassword); err != nil {
			return errors.New("failed to hash new password")
		}
		return users.UpdatePassword(user.ID, user.Password)
	})
}

func (s *authService) ResetPassword(username, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	return s.gw.Transaction(func(tx *gorm.DB) error {
		users := repository.NewUserRepo(tx)
		user, err := findUser(users, username)
		if err != nil {
			return err
		}
		if err := user.SetPassword(newPassword); err != nil {
			return errors.New("failed to hash new password")
		}
		return users.UpdatePassword(user.ID, user.Password)
	})
}

func findUser(users repository.UserRepository, username string) (*model.User, error) {
	user, err := users.FindByUsername(strings.TrimSpace(username))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperr.Validation("password", "must be at least 6 characters")
	}
	return nil
}
