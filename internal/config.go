package internal

import "time"

type Config struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT,required=true"`
	LogLevel string `env:"LOG_LEVEL,required=true"`

	JWTSecret string `env:"JWT_SECRET,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	RedisAddr     string `env:"REDIS_ADDR,required=true"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`

	// Empty endpoint disables the off-band push channel.
	PushEndpoint string        `env:"PUSH_ENDPOINT"`
	PushTimeout  time.Duration `env:"PUSH_TIMEOUT,default=5s"`

	PersistTimeout time.Duration `env:"PERSIST_TIMEOUT,default=3s"`
	CacheTimeout   time.Duration `env:"CACHE_TIMEOUT,default=2s"`
	ReplayTTL      time.Duration `env:"REPLAY_TTL,default=24h"`
	ReplayTimeout  time.Duration `env:"REPLAY_TIMEOUT,default=5s"`

	HandshakeTimeout     time.Duration `env:"HANDSHAKE_TIMEOUT,default=10s"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PongTimeout          time.Duration `env:"PONG_TIMEOUT,default=60s"`
	PingInterval         time.Duration `env:"PING_INTERVAL,default=25s"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=1s"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	MaxMessageSize       int64         `env:"MAX_MESSAGE_SIZE,default=4096"`

	MetricInterval time.Duration `env:"METRIC_INTERVAL,default=30s"`
}
