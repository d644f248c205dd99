package main

import (
	"fmt"
	"os"
)

type TablesCmd struct {
	Server  string `kong:"default='http://127.0.0.1:6969',help='Gateway base URL'"`
	Offline bool   `kong:"help='Print the last cached listing instead of calling the gateway'"`
}

func (c *TablesCmd) Run() error {
	cache, cacheErr := newTableCache()

	if c.Offline {
		if cacheErr != nil {
			return cacheErr
		}
		tables, fetchedAt, err := cache.Load()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "pokerctl: showing listing cached at %s\n", fetchedAt.Format("2006-01-02 15:04:05"))
		return printJSON(tables)
	}

	client := &gatewayClient{baseURL: c.Server}
	var tables []map[string]interface{}
	if err := client.do("GET", "/api/tables", nil, &tables); err != nil {
		if cacheErr == nil {
			if cached, fetchedAt, cacheLoadErr := cache.Load(); cacheLoadErr == nil {
				fmt.Fprintf(os.Stderr, "pokerctl: gateway unreachable (%v), showing listing cached at %s\n", err, fetchedAt.Format("2006-01-02 15:04:05"))
				return printJSON(cached)
			}
		}
		return err
	}

	if cacheErr == nil {
		_ = cache.Store(tables)
	}
	return printJSON(tables)
}

type StateCmd struct {
	Server  string `kong:"default='http://127.0.0.1:6969',help='Gateway base URL'"`
	TableID int64  `kong:"required,help='Table ID'"`
}

func (c *StateCmd) Run() error {
	client := &gatewayClient{baseURL: c.Server}
	var state map[string]interface{}
	if err := client.do("GET", fmt.Sprintf("/api/tables/%d/", c.TableID), nil, &state); err != nil {
		return err
	}
	return printJSON(state)
}

type JoinCmd struct {
	Server     string `kong:"default='http://127.0.0.1:6969',help='Gateway base URL'"`
	Token      string `kong:"required,help='Access token from login'"`
	TableID    int64  `kong:"required,help='Table ID'"`
	BuyIn      int64  `kong:"required,help='Buy-in amount in chips'"`
	Passphrase string `kong:"help='Passphrase for a private table'"`
}

func (c *JoinCmd) Run() error {
	client := &gatewayClient{baseURL: c.Server, accessToken: c.Token}
	return client.do("POST", fmt.Sprintf("/api/tables/%d/join", c.TableID), map[string]interface{}{
		"buy_in_amount": c.BuyIn,
		"passphrase":    c.Passphrase,
	}, nil)
}

type LeaveCmd struct {
	Server  string `kong:"default='http://127.0.0.1:6969',help='Gateway base URL'"`
	Token   string `kong:"required,help='Access token from login'"`
	TableID int64  `kong:"required,help='Table ID'"`
}

func (c *LeaveCmd) Run() error {
	client := &gatewayClient{baseURL: c.Server, accessToken: c.Token}
	return client.do("POST", fmt.Sprintf("/api/tables/%d/leave", c.TableID), nil, nil)
}

type ActCmd struct {
	Server  string `kong:"default='http://127.0.0.1:6969',help='Gateway base URL'"`
	Token   string `kong:"required,help='Access token from login'"`
	TableID int64  `kong:"required,help='Table ID'"`
	Action  string `kong:"required,enum='fold,check,call,bet,raise,all_in',help='Action to take'"`
	Amount  int64  `kong:"help='Chip amount, for bet/raise'"`
}

func (c *ActCmd) Run() error {
	client := &gatewayClient{baseURL: c.Server, accessToken: c.Token}
	return client.do("POST", fmt.Sprintf("/api/tables/%d/action", c.TableID), map[string]interface{}{
		"action": c.Action,
		"amount": c.Amount,
	}, nil)
}
