package models

type Role string

const (
	RoleCitizen  Role = "CITIZEN"
	RoleOperator Role = "OPERATOR"
	RoleAdmin    Role = "ADMIN"
)

type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}
