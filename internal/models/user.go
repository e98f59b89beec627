package models

import "time"

type User struct {
	ID           uint64
	Username     string
	Email        string
	PasswordHash string
	CompanyName  *string
	CreatedAt    time.Time
}

type UserCreateInput struct {
	Username     string
	Email        string
	PasswordHash string
	CompanyName  *string
}
