package auth

type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	DataScope   string   `json:"dataScope"`
	Permissions []string `json:"permissions"`
}

type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresIn int64       `json:"expiresIn"`
	User      UserContext `json:"user"`
}
