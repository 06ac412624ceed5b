package model

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// User is a local operator account. Password and SecurityAnswer hold bcrypt hashes.
type User struct {
	ID               uint    `gorm:"primaryKey;column:id" json:"id"`
	Username         string  `gorm:"column:username;uniqueIndex" json:"username"`
	Password         string  `gorm:"column:password" json:"password"`
	Role             string  `gorm:"column:role" json:"role"`
	SecurityQuestion *string `gorm:"column:security_question" json:"security_question"`
	SecurityAnswer   *string `gorm:"column:security_answer" json:"security_answer"`
}

func (User) TableName() string { return "users" }

// SetPassword hashes and sets the user's password
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword verifies if the provided password matches the stored hash
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// SetSecurityAnswer stores the question and a hash of the normalized answer.
func (u *User) SetSecurityAnswer(question, answer string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(NormalizeAnswer(answer)), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	q := strings.TrimSpace(question)
	h := string(hash)
	u.SecurityQuestion = &q
	u.SecurityAnswer = &h
	return nil
}

func (u *User) CheckSecurityAnswer(answer string) bool {
	if u.SecurityAnswer == nil || *u.SecurityAnswer == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*u.SecurityAnswer), []byte(NormalizeAnswer(answer))) == nil
}

// HasSecurityQuestion reports whether both question and answer are set.
func (u *User) HasSecurityQuestion() bool {
	return u.SecurityQuestion != nil && *u.SecurityQuestion != "" &&
		u.SecurityAnswer != nil && *u.SecurityAnswer != ""
}

// NormalizeAnswer trims and lower-cases a security answer before hashing or comparing.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
