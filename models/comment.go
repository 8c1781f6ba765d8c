package models

import "time"

// Comment is a note left on a repair request by the staff member working it.
type Comment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	MasterID  uint      `json:"-" gorm:"column:master_id;not null;index"`
	Master    *User     `json:"master,omitempty" gorm:"foreignKey:MasterID"`
	RequestID uint      `json:"requestId" gorm:"column:request_id;not null;index"`
}

func (Comment) TableName() string {
	return "comments"
}

type CreateCommentInput struct {
	Message string `json:"message" binding:"required,max=4000"`
}
