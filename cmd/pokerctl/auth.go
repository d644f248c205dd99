package main

type RegisterCmd struct {
	Server      string `kong:"default='http://127.0.0.1:6969',help='Gateway base URL'"`
	Username    string `kong:"required,help='Account username'"`
	Password    string `kong:"required,help='Account password'"`
	DisplayName string `kong:"help='Display name (defaults to username)'"`
}

func (c *RegisterCmd) Run() error {
	client := &gatewayClient{baseURL: c.Server}
	displayName := c.DisplayName
	if displayName == "" {
		displayName = c.Username
	}

	var user map[string]interface{}
	if err := client.do("POST", "/api/auth/register", map[string]interface{}{
		"username":     c.Username,
		"password":     c.Password,
		"display_name": displayName,
	}, &user); err != nil {
		return err
	}
	return printJSON(user)
}

type LoginCmd struct {
	Server   string `kong:"default='http://127.0.0.1:6969',help='Gateway base URL'"`
	Username string `kong:"required,help='Account username'"`
	Password string `kong:"required,help='Account password'"`
	TOTPCode string `kong:"help='Two-factor code, if enrolled'"`
}

func (c *LoginCmd) Run() error {
	client := &gatewayClient{baseURL: c.Server}

	body := map[string]interface{}{
		"username": c.Username,
		"password": c.Password,
	}
	if c.TOTPCode != "" {
		body["totp_code"] = c.TOTPCode
	}

	var resp map[string]interface{}
	if err := client.do("POST", "/api/auth/login", body, &resp); err != nil {
		return err
	}
	return printJSON(resp)
}
