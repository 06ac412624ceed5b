package repository

import (
	"go-inventory-offline/internal/model"

	"gorm.io/gorm"
)

type StudentRepository interface {
	Create(student *model.Student) error
	FindByID(id uint) (*model.Student, error)
	FindByNameClass(name, class string) (*model.Student, error)
	FindAll() ([]model.Student, error)
	UpdatePreviousSchool(id uint, school *string) error
}

type studentRepo struct {
	db *gorm.DB
}

func NewStudentRepo(db *gorm.DB) StudentRepository {
	return &studentRepo{db}
}

func (r *studentRepo) Create(student *model.Student) error {
	return r.db.Create(student).Error
}

func (r *studentRepo) FindByID(id uint) (*model.Student, error) {
	var student model.Student
	if err := r.db.First(&student, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepo) FindByNameClass(name, class string) (*model.Student, error) {
	var student model.Student
	if err := r.db.Where("name = ? AND class = ?", name, class).First(&student).Error; err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepo) FindAll() ([]model.Student, error) {
	var students []model.Student
	err := r.db.Order("name ASC, class ASC").Find(&students).Error
	return students, err
}

func (r *studentRepo) UpdatePreviousSchool(id uint, school *string) error {
	return r.db.Model(&model.Student{}).Where("id = ?", id).Update("previous_school", school).Error
}
