package relay

import (
	"time"

	"github.com/hivechat/realtime/core/server"
	"github.com/hivechat/realtime/integration/database/redis"
)

// Config is the relay's environment-driven configuration.
type Config struct {
	Redis  redis.Config
	Server server.Config

	// JWTSecret signs the access tokens the gatekeeper verifies.
	JWTSecret string `env:"JWT_SECRET,required"`

	// WSPath is the websocket endpoint path.
	WSPath string `env:"WS_PATH" envDefault:"/ws"`

	// SendBuffer is the per-session outbox capacity.
	SendBuffer int `env:"SESSION_SEND_BUFFER" envDefault:"256"`

	// PingInterval keeps websocket connections alive through proxies.
	PingInterval time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`

	// ConnectAttempts and ConnectWindow bound failed handshakes per IP.
	ConnectAttempts int64         `env:"RATE_CONNECT_ATTEMPTS" envDefault:"5"`
	ConnectWindow   time.Duration `env:"RATE_CONNECT_WINDOW" envDefault:"15m"`

	// MessageBurst and MessageWindow bound message sends per user.
	MessageBurst  int64         `env:"RATE_MESSAGE_BURST" envDefault:"10"`
	MessageWindow time.Duration `env:"RATE_MESSAGE_WINDOW" envDefault:"10s"`
}
