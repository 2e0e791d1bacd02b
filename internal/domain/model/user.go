package model

// 役割。認証は外部（JWT検証済みのclaims）を無条件に信用する。
type Role string

const (
	RoleUser   Role = "USER"
	RoleSeller Role = "SELLER"
	RoleAdmin  Role = "ADMIN"
)

// 認証境界から渡ってくる操作者。
type Actor struct {
	UserID int64
	Role   Role
}

func (a Actor) IsAdmin() bool  { return a.Role == RoleAdmin }
func (a Actor) IsSeller() bool { return a.Role == RoleSeller }
