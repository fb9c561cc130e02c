package model

import (
	"time"
)

// User 用户表（最小化）
// 认证由上游服务负责，这里只保留推荐关系图需要的字段。
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"type:varchar(150);uniqueIndex;not null" json:"username"`
	ReferredByID *int64    `gorm:"index" json:"referred_by_id"` // 邀请人（一级推荐人），可为空
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "user"
}
