package models

import "time"

// Image describes an uploaded product picture. The zero value means no image.
type Image struct {
	FileName string `json:"fileName,omitempty" gorm:"type:varchar(255)"`
	FilePath string `json:"filePath,omitempty" gorm:"type:varchar(1000)"`
	FileType string `json:"fileType,omitempty" gorm:"type:varchar(100)"`
	FileSize string `json:"fileSize,omitempty" gorm:"type:varchar(50)"`
}

// Empty reports whether no image was attached.
func (i Image) Empty() bool {
	return i == Image{}
}

// Product represents a stock item owned by a single user.
type Product struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID      string    `json:"user" gorm:"column:user_id;index;type:varchar(36);not null"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	SKU         string    `json:"sku" gorm:"column:sku;type:varchar(100);not null"`
	Category    string    `json:"category" gorm:"type:varchar(100);not null"`
	Quantity    int       `json:"quantity"`
	Price       float64   `json:"price"`
	Description string    `json:"description" gorm:"type:text"`
	Image       Image     `json:"image" gorm:"embedded;embeddedPrefix:image_"`
	CreatedAt   time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
