package client

import (
	"net/http"
	"strings"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/event"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upGrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 使用WebSocket向前端推送合约事件，?events=Funded,Withdrawn 过滤事件名称
func (s *Server) getLog(c *gin.Context) {
	// 升级请求为WebSocket协议
	ws, err := upGrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Info("Upgrade failed")
		return
	}
	defer ws.Close()

	var names []string
	if q := c.Query("events"); q != "" {
		names = strings.Split(q, ",")
	}
	events, cancel := s.chain.Bus().Subscribe(event.ByName(names...), 64)
	defer cancel()

	// 前端断开后结束推送
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := ws.WriteJSON(e); err != nil {
				log.Info(err)
				return
			}
		}
	}
}
