package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/gorilla/websocket"
)

type StreamCmd struct {
	Server  string `kong:"default='http://127.0.0.1:6969',help='Gateway base URL'"`
	Token   string `kong:"required,help='Access token from login'"`
	TableID int64  `kong:"required,help='Table ID'"`
}

func (c *StreamCmd) Run() error {
	wsURL := strings.Replace(c.Server, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	u := fmt.Sprintf("%s/ws/%d?token=%s", wsURL, c.TableID, url.QueryEscape(c.Token))

	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	enc := json.NewEncoder(os.Stdout)
	for {
		var view map[string]interface{}
		if err := conn.ReadJSON(&view); err != nil {
			return err
		}
		if err := enc.Encode(view); err != nil {
			return err
		}
	}
}
