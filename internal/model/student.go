package model

// Student is identified by the natural key (name, class).
type Student struct {
	ID             uint    `gorm:"primaryKey;column:id" json:"id"`
	Name           string  `gorm:"column:name" json:"name"`
	Class          string  `gorm:"column:class" json:"class"`
	PreviousSchool *string `gorm:"column:previous_school" json:"previous_school"`
}

func (Student) TableName() string { return "students" }
