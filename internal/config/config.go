package config

import (
	"time"

	"github.com/vovakirdan/skyoffice-server/internal/office"
	"github.com/vovakirdan/skyoffice-server/internal/points"
)

// Config holds server configuration values.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Room      RoomConfig      `mapstructure:"room" yaml:"room"`
	Points    PointsConfig    `mapstructure:"points" yaml:"points"`
	AI        AIConfig        `mapstructure:"ai" yaml:"ai"`
	Analytics AnalyticsConfig `mapstructure:"analytics" yaml:"analytics"`
	LiveKit   LiveKitConfig   `mapstructure:"livekit" yaml:"livekit"`
	NPCs      []NPCConfig     `mapstructure:"npcs" yaml:"npcs"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer" yaml:"issuer"`
	Audience  string        `mapstructure:"audience" yaml:"audience"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	// Required rejects guest joins.
	Required bool `mapstructure:"required" yaml:"required"`
}

type RoomConfig struct {
	PatchRate         time.Duration `mapstructure:"patch_rate" yaml:"patch_rate"`
	PublicName        string        `mapstructure:"public_name" yaml:"public_name"`
	PublicDescription string        `mapstructure:"public_description" yaml:"public_description"`
	ClientBuffer      int           `mapstructure:"client_buffer" yaml:"client_buffer"`
	// RateLimit is the number of inbound messages allowed per connection
	// and minute. Zero disables the limit.
	RateLimit    int           `mapstructure:"rate_limit" yaml:"rate_limit"`
	StoreTimeout time.Duration `mapstructure:"store_timeout" yaml:"store_timeout"`
	Computers    int           `mapstructure:"computers" yaml:"computers"`
	Whiteboards  int           `mapstructure:"whiteboards" yaml:"whiteboards"`
}

type PointsConfig struct {
	MeaningfulQuestion   int64         `mapstructure:"meaningful_question" yaml:"meaningful_question"`
	ConversationStart    int64         `mapstructure:"conversation_start" yaml:"conversation_start"`
	ConversationCooldown time.Duration `mapstructure:"conversation_cooldown" yaml:"conversation_cooldown"`
}

type AIConfig struct {
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Model       string        `mapstructure:"model" yaml:"model"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type AnalyticsConfig struct {
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
	MaxQueue      int           `mapstructure:"max_queue" yaml:"max_queue"`
	MaxBacklog    int           `mapstructure:"max_backlog" yaml:"max_backlog"`
	// NATSURL enables publishing flushed events. "embedded" starts an
	// in-process server on NATSPort.
	NATSURL     string `mapstructure:"nats_url" yaml:"nats_url"`
	NATSSubject string `mapstructure:"nats_subject" yaml:"nats_subject"`
	NATSPort    int    `mapstructure:"nats_port" yaml:"nats_port"`
}

type LiveKitConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	APISecret string `mapstructure:"api_secret" yaml:"api_secret"`
	URL       string `mapstructure:"url" yaml:"url"`
}

// NPCConfig is the file form of office.NPCConfig.
type NPCConfig struct {
	ID           string  `mapstructure:"id" yaml:"id"`
	Name         string  `mapstructure:"name" yaml:"name"`
	X            float64 `mapstructure:"x" yaml:"x"`
	Y            float64 `mapstructure:"y" yaml:"y"`
	Texture      string  `mapstructure:"texture" yaml:"texture"`
	Anim         string  `mapstructure:"anim" yaml:"anim"`
	Greeting     string  `mapstructure:"greeting" yaml:"greeting"`
	AwardMessage string  `mapstructure:"award_message" yaml:"award_message"`
	Chat         bool    `mapstructure:"chat" yaml:"chat"`
}

// EmbeddedNATS is the NATSURL value that starts an in-process server.
const EmbeddedNATS = "embedded"

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	layout := office.DefaultLayout()
	npcs := make([]NPCConfig, 0, len(layout.NPCs))
	for _, n := range layout.NPCs {
		npcs = append(npcs, NPCConfig{
			ID:           n.ID,
			Name:         n.Name,
			X:            n.X,
			Y:            n.Y,
			Texture:      n.Texture,
			Anim:         n.Anim,
			Greeting:     n.Greeting,
			AwardMessage: n.AwardMessage,
			Chat:         n.Chat,
		})
	}

	return Config{
		Server: ServerConfig{
			Addr:              ":2567",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
			MaxMessageBytes:   1 << 16,
		},
		Log:      LogConfig{Level: "info"},
		Database: DatabaseConfig{Path: "skyoffice.db"},
		Auth: AuthConfig{
			JWTSecret: "change-me",
			Issuer:    "skyoffice",
			TokenTTL:  24 * time.Hour,
		},
		Room: RoomConfig{
			PatchRate:         50 * time.Millisecond,
			PublicName:        "SkyOffice",
			PublicDescription: "The public lobby",
			ClientBuffer:      256,
			RateLimit:         600,
			StoreTimeout:      5 * time.Second,
			Computers:         layout.Computers,
			Whiteboards:       layout.Whiteboards,
		},
		Points: PointsConfig{
			MeaningfulQuestion:   points.DefaultRules[points.MeaningfulQuestion].Points,
			ConversationStart:    points.DefaultRules[points.NPCConversationStart].Points,
			ConversationCooldown: points.DefaultRules[points.NPCConversationStart].Cooldown,
		},
		AI: AIConfig{
			Model:       "gpt-3.5-turbo",
			MaxTokens:   200,
			Temperature: 0.7,
			Timeout:     20 * time.Second,
		},
		Analytics: AnalyticsConfig{
			FlushInterval: 3 * time.Second,
			MaxQueue:      100,
			MaxBacklog:    1000,
			NATSSubject:   "skyoffice.events",
			NATSPort:      4222,
		},
		NPCs: npcs,
	}
}

// Layout builds the furniture of new rooms.
func (c *Config) Layout() office.Layout {
	npcs := make([]office.NPCConfig, 0, len(c.NPCs))
	for _, n := range c.NPCs {
		npcs = append(npcs, office.NPCConfig{
			ID:           n.ID,
			Name:         n.Name,
			X:            n.X,
			Y:            n.Y,
			Texture:      n.Texture,
			Anim:         n.Anim,
			Greeting:     n.Greeting,
			AwardMessage: n.AwardMessage,
			Chat:         n.Chat,
		})
	}
	return office.Layout{
		NPCs:        npcs,
		Computers:   c.Room.Computers,
		Whiteboards: c.Room.Whiteboards,
	}
}

// PointRules applies the configured amounts to points.DefaultRules.
func (c *Config) PointRules() map[points.Type]points.Rule {
	rules := make(map[points.Type]points.Rule, len(points.DefaultRules))
	for t, r := range points.DefaultRules {
		rules[t] = r
	}
	mq := rules[points.MeaningfulQuestion]
	mq.Points = c.Points.MeaningfulQuestion
	rules[points.MeaningfulQuestion] = mq

	cs := rules[points.NPCConversationStart]
	cs.Points = c.Points.ConversationStart
	cs.Cooldown = c.Points.ConversationCooldown
	rules[points.NPCConversationStart] = cs
	return rules
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// It is used for command line overrides.
func (c *Config) UpdateFrom(other Config) {
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.ReadHeaderTimeout != 0 {
		c.Server.ReadHeaderTimeout = other.Server.ReadHeaderTimeout
	}
	if other.Server.ShutdownTimeout != 0 {
		c.Server.ShutdownTimeout = other.Server.ShutdownTimeout
	}
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Database.Path != "" {
		c.Database.Path = other.Database.Path
	}
	if other.Auth.Required {
		c.Auth.Required = true
	}
}
